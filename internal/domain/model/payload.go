package model

import (
	"encoding/json"
	"fmt"
)

// Payload is the topic-specific body of a canonical event.
type Payload interface {
	GetState() string
}

// Connection is the canonical body of the connections topic.
type Connection struct {
	ConnectionID    string `json:"connection_id"`
	State           string `json:"state,omitempty"`
	Alias           string `json:"alias,omitempty"`
	TheirLabel      string `json:"their_label,omitempty"`
	TheirDID        string `json:"their_did,omitempty"`
	MyDID           string `json:"my_did,omitempty"`
	TheirRole       string `json:"their_role,omitempty"`
	InvitationKey   string `json:"invitation_key,omitempty"`
	InvitationMsgID string `json:"invitation_msg_id,omitempty"`
	ConnectionProto string `json:"connection_protocol,omitempty"`
	ErrorMsg        string `json:"error_msg,omitempty"`
	CreatedAt       string `json:"created_at,omitempty"`
	UpdatedAt       string `json:"updated_at,omitempty"`
}

func (p *Connection) GetState() string { return p.State }

// CredentialExchange is shared by v1 and v2 issue-credential exchanges. The identifier
// carries a protocol prefix ("v1-" / "v2-") so both versions expose the same field.
type CredentialExchange struct {
	CredentialExchangeID   string         `json:"credential_exchange_id"`
	ProtocolVersion        string         `json:"protocol_version"`
	State                  string         `json:"state,omitempty"`
	Role                   string         `json:"role,omitempty"`
	ConnectionID           string         `json:"connection_id,omitempty"`
	ThreadID               string         `json:"thread_id,omitempty"`
	SchemaID               string         `json:"schema_id,omitempty"`
	CredentialDefinitionID string         `json:"credential_definition_id,omitempty"`
	Attributes             map[string]any `json:"attributes,omitempty"`
	ErrorMsg               string         `json:"error_msg,omitempty"`
	CreatedAt              string         `json:"created_at,omitempty"`
	UpdatedAt              string         `json:"updated_at,omitempty"`
}

func (p *CredentialExchange) GetState() string { return p.State }

// CredentialDetail is the format-specific record (indy or ld_proof) of a v2 exchange.
type CredentialDetail struct {
	CredentialExchangeID string `json:"credential_exchange_id"`
	RecordID             string `json:"record_id,omitempty"`
	State                string `json:"state,omitempty"`
	CredentialID         string `json:"credential_id,omitempty"`
	CredRevID            string `json:"cred_rev_id,omitempty"`
	RevRegID             string `json:"rev_reg_id,omitempty"`
	CreatedAt            string `json:"created_at,omitempty"`
	UpdatedAt            string `json:"updated_at,omitempty"`
}

func (p *CredentialDetail) GetState() string { return p.State }

// PresentationExchange is shared by v1 and v2 present-proof exchanges.
type PresentationExchange struct {
	ProofID         string `json:"proof_id"`
	ProtocolVersion string `json:"protocol_version"`
	State           string `json:"state,omitempty"`
	Role            string `json:"role,omitempty"`
	ConnectionID    string `json:"connection_id,omitempty"`
	ThreadID        string `json:"thread_id,omitempty"`
	Verified        *bool  `json:"verified,omitempty"`
	ErrorMsg        string `json:"error_msg,omitempty"`
	CreatedAt       string `json:"created_at,omitempty"`
	UpdatedAt       string `json:"updated_at,omitempty"`
}

func (p *PresentationExchange) GetState() string { return p.State }

// Endorsement tracks a ledger transaction awaiting an endorser's countersignature.
type Endorsement struct {
	TransactionID string `json:"transaction_id"`
	State         string `json:"state,omitempty"`
	ConnectionID  string `json:"connection_id,omitempty"`
	ThreadID      string `json:"thread_id,omitempty"`
	CreatedAt     string `json:"created_at,omitempty"`
	UpdatedAt     string `json:"updated_at,omitempty"`
}

func (p *Endorsement) GetState() string { return p.State }

type BasicMessage struct {
	MessageID    string `json:"message_id"`
	ConnectionID string `json:"connection_id,omitempty"`
	Content      string `json:"content,omitempty"`
	SentTime     string `json:"sent_time,omitempty"`
	State        string `json:"state,omitempty"`
}

func (p *BasicMessage) GetState() string { return p.State }

type OutOfBand struct {
	OOBID           string `json:"oob_id"`
	InvitationMsgID string `json:"invi_msg_id,omitempty"`
	ConnectionID    string `json:"connection_id,omitempty"`
	Role            string `json:"role,omitempty"`
	State           string `json:"state,omitempty"`
	CreatedAt       string `json:"created_at,omitempty"`
	UpdatedAt       string `json:"updated_at,omitempty"`
}

func (p *OutOfBand) GetState() string { return p.State }

// RevocationRegistry describes lifecycle changes of a revocation registry.
type RevocationRegistry struct {
	RecordID               string `json:"record_id"`
	RevocRegID             string `json:"revoc_reg_id,omitempty"`
	CredentialDefinitionID string `json:"cred_def_id,omitempty"`
	State                  string `json:"state,omitempty"`
	CreatedAt              string `json:"created_at,omitempty"`
	UpdatedAt              string `json:"updated_at,omitempty"`
}

func (p *RevocationRegistry) GetState() string { return p.State }

// IssuerCredRev tracks the revocation state of one issued credential.
type IssuerCredRev struct {
	RecordID               string `json:"record_id"`
	State                  string `json:"state,omitempty"`
	CredentialExchangeID   string `json:"cred_ex_id,omitempty"`
	RevRegID               string `json:"rev_reg_id,omitempty"`
	CredRevID              string `json:"cred_rev_id,omitempty"`
	CredentialDefinitionID string `json:"cred_def_id,omitempty"`
	CreatedAt              string `json:"created_at,omitempty"`
	UpdatedAt              string `json:"updated_at,omitempty"`
}

func (p *IssuerCredRev) GetState() string { return p.State }

type ProblemReport struct {
	ThreadID    string         `json:"thread_id"`
	Description map[string]any `json:"description,omitempty"`
	State       string         `json:"state,omitempty"`
}

func (p *ProblemReport) GetState() string { return p.State }

// NewPayload allocates the zero value of the payload variant bound to topic.
func NewPayload(topic Topic) (Payload, error) {
	switch topic {
	case TopicConnections:
		return &Connection{}, nil
	case TopicCredentials:
		return &CredentialExchange{}, nil
	case TopicCredentialsIndy, TopicCredentialsLD:
		return &CredentialDetail{}, nil
	case TopicProofs:
		return &PresentationExchange{}, nil
	case TopicEndorsements:
		return &Endorsement{}, nil
	case TopicBasicMessages:
		return &BasicMessage{}, nil
	case TopicOOB:
		return &OutOfBand{}, nil
	case TopicRevocation:
		return &RevocationRegistry{}, nil
	case TopicIssuerCredRev:
		return &IssuerCredRev{}, nil
	case TopicProblemReport:
		return &ProblemReport{}, nil
	default:
		return nil, fmt.Errorf("no payload variant for topic %q", topic)
	}
}

// DecodePayload restores the typed payload of topic from its JSON encoding.
func DecodePayload(topic Topic, raw json.RawMessage) (Payload, error) {
	p, err := NewPayload(topic)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", topic, err)
	}
	return p, nil
}
