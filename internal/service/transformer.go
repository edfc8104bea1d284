package service

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/webitel/webhooks-service/internal/domain/model"
)

// TransformFunc converts an agent payload into the canonical variant of one topic.
type TransformFunc func(agentTopic string, raw map[string]any) (model.Payload, error)

// transformers is keyed by canonical topic, one function per topic.
var transformers = map[model.Topic]TransformFunc{
	model.TopicConnections:     transformConnection,
	model.TopicCredentials:     transformCredential,
	model.TopicCredentialsIndy: transformCredentialDetail("cred_ex_indy_id"),
	model.TopicCredentialsLD:   transformCredentialDetail("cred_ex_ld_proof_id"),
	model.TopicProofs:          transformProof,
	model.TopicEndorsements:    transformEndorsement,
	model.TopicBasicMessages:   transformBasicMessage,
	model.TopicOOB:             transformOOB,
	model.TopicRevocation:      transformRevocation,
	model.TopicIssuerCredRev:   transformIssuerCredRev,
	model.TopicProblemReport:   transformProblemReport,
}

// Transform builds the canonical payload for topic.
func Transform(topic model.Topic, agentTopic string, raw map[string]any) (model.Payload, error) {
	fn, ok := transformers[topic]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoTransformer, topic)
	}
	payload, err := fn(agentTopic, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformedPayload, topic, err)
	}
	return payload, nil
}

// NormalizeState lowercases an agent state and hyphenates it ("request_received" -> "request-received").
func NormalizeState(s string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "_", "-"))
}

func str(raw map[string]any, key string) string {
	switch v := raw[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func required(raw map[string]any, key string) (string, error) {
	v := str(raw, key)
	if v == "" {
		return "", fmt.Errorf("missing %q", key)
	}
	return v, nil
}

// protocolVersion tells v1 and v2 variants of the same exchange apart.
func protocolVersion(agentTopic string) string {
	if strings.Contains(agentTopic, "v2_0") {
		return "v2"
	}
	return "v1"
}

func transformConnection(_ string, raw map[string]any) (model.Payload, error) {
	id, err := required(raw, "connection_id")
	if err != nil {
		return nil, err
	}
	state := str(raw, "rfc23_state")
	if state == "" {
		state = str(raw, "state")
	}
	return &model.Connection{
		ConnectionID:    id,
		State:           NormalizeState(state),
		Alias:           str(raw, "alias"),
		TheirLabel:      str(raw, "their_label"),
		TheirDID:        str(raw, "their_did"),
		MyDID:           str(raw, "my_did"),
		TheirRole:       str(raw, "their_role"),
		InvitationKey:   str(raw, "invitation_key"),
		InvitationMsgID: str(raw, "invitation_msg_id"),
		ConnectionProto: str(raw, "connection_protocol"),
		ErrorMsg:        str(raw, "error_msg"),
		CreatedAt:       str(raw, "created_at"),
		UpdatedAt:       str(raw, "updated_at"),
	}, nil
}

func transformCredential(agentTopic string, raw map[string]any) (model.Payload, error) {
	version := protocolVersion(agentTopic)
	idField := "credential_exchange_id"
	if version == "v2" {
		idField = "cred_ex_id"
	}
	id, err := required(raw, idField)
	if err != nil {
		return nil, err
	}

	p := &model.CredentialExchange{
		CredentialExchangeID: version + "-" + id,
		ProtocolVersion:      version,
		State:                NormalizeState(str(raw, "state")),
		Role:                 str(raw, "role"),
		ConnectionID:         str(raw, "connection_id"),
		ThreadID:             str(raw, "thread_id"),
		ErrorMsg:             str(raw, "error_msg"),
		CreatedAt:            str(raw, "created_at"),
		UpdatedAt:            str(raw, "updated_at"),
	}

	if version == "v1" {
		p.SchemaID = str(raw, "schema_id")
		p.CredentialDefinitionID = str(raw, "credential_definition_id")
		if proposal, ok := raw["credential_proposal_dict"].(map[string]any); ok {
			p.Attributes = previewAttributes(proposal["credential_proposal"])
		}
		return p, nil
	}

	if byFormat, ok := raw["by_format"].(map[string]any); ok {
		if offer, ok := byFormat["cred_offer"].(map[string]any); ok {
			if indy, ok := offer["indy"].(map[string]any); ok {
				p.SchemaID = str(indy, "schema_id")
				p.CredentialDefinitionID = str(indy, "cred_def_id")
			}
		}
	}
	p.Attributes = previewAttributes(raw["cred_preview"])
	return p, nil
}

// previewAttributes flattens a credential preview ({"attributes":[{"name","value"}]}).
func previewAttributes(preview any) map[string]any {
	m, ok := preview.(map[string]any)
	if !ok {
		return nil
	}
	list, ok := m["attributes"].([]any)
	if !ok || len(list) == 0 {
		return nil
	}
	out := make(map[string]any, len(list))
	for _, item := range list {
		attr, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if name := str(attr, "name"); name != "" {
			out[name] = attr["value"]
		}
	}
	return out
}

func transformCredentialDetail(recordField string) TransformFunc {
	return func(_ string, raw map[string]any) (model.Payload, error) {
		id, err := required(raw, "cred_ex_id")
		if err != nil {
			return nil, err
		}
		return &model.CredentialDetail{
			CredentialExchangeID: "v2-" + id,
			RecordID:             str(raw, recordField),
			State:                NormalizeState(str(raw, "state")),
			CredentialID:         str(raw, "cred_id_stored"),
			CredRevID:            str(raw, "cred_rev_id"),
			RevRegID:             str(raw, "rev_reg_id"),
			CreatedAt:            str(raw, "created_at"),
			UpdatedAt:            str(raw, "updated_at"),
		}, nil
	}
}

func transformProof(agentTopic string, raw map[string]any) (model.Payload, error) {
	version := protocolVersion(agentTopic)
	idField := "presentation_exchange_id"
	if version == "v2" {
		idField = "pres_ex_id"
	}
	id, err := required(raw, idField)
	if err != nil {
		return nil, err
	}

	p := &model.PresentationExchange{
		ProofID:         version + "-" + id,
		ProtocolVersion: version,
		State:           NormalizeState(str(raw, "state")),
		Role:            str(raw, "role"),
		ConnectionID:    str(raw, "connection_id"),
		ThreadID:        str(raw, "thread_id"),
		ErrorMsg:        str(raw, "error_msg"),
		CreatedAt:       str(raw, "created_at"),
		UpdatedAt:       str(raw, "updated_at"),
	}
	if verified, ok := parseBool(raw["verified"]); ok {
		p.Verified = &verified
	}
	return p, nil
}

// parseBool accepts the "true"/"false" strings some agent versions emit.
func parseBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		parsed, err := strconv.ParseBool(b)
		return parsed, err == nil
	default:
		return false, false
	}
}

func transformEndorsement(_ string, raw map[string]any) (model.Payload, error) {
	id, err := required(raw, "transaction_id")
	if err != nil {
		return nil, err
	}
	return &model.Endorsement{
		TransactionID: id,
		State:         NormalizeState(str(raw, "state")),
		ConnectionID:  str(raw, "connection_id"),
		ThreadID:      str(raw, "thread_id"),
		CreatedAt:     str(raw, "created_at"),
		UpdatedAt:     str(raw, "updated_at"),
	}, nil
}

func transformBasicMessage(_ string, raw map[string]any) (model.Payload, error) {
	id, err := required(raw, "message_id")
	if err != nil {
		return nil, err
	}
	return &model.BasicMessage{
		MessageID:    id,
		ConnectionID: str(raw, "connection_id"),
		Content:      str(raw, "content"),
		SentTime:     str(raw, "sent_time"),
		State:        NormalizeState(str(raw, "state")),
	}, nil
}

func transformOOB(_ string, raw map[string]any) (model.Payload, error) {
	id, err := required(raw, "oob_id")
	if err != nil {
		return nil, err
	}
	return &model.OutOfBand{
		OOBID:           id,
		InvitationMsgID: str(raw, "invi_msg_id"),
		ConnectionID:    str(raw, "connection_id"),
		Role:            str(raw, "role"),
		State:           NormalizeState(str(raw, "state")),
		CreatedAt:       str(raw, "created_at"),
		UpdatedAt:       str(raw, "updated_at"),
	}, nil
}

func transformRevocation(_ string, raw map[string]any) (model.Payload, error) {
	id, err := required(raw, "record_id")
	if err != nil {
		return nil, err
	}
	return &model.RevocationRegistry{
		RecordID:               id,
		RevocRegID:             str(raw, "revoc_reg_id"),
		CredentialDefinitionID: str(raw, "cred_def_id"),
		State:                  NormalizeState(str(raw, "state")),
		CreatedAt:              str(raw, "created_at"),
		UpdatedAt:              str(raw, "updated_at"),
	}, nil
}

func transformIssuerCredRev(_ string, raw map[string]any) (model.Payload, error) {
	id, err := required(raw, "record_id")
	if err != nil {
		return nil, err
	}
	return &model.IssuerCredRev{
		RecordID:               id,
		State:                  NormalizeState(str(raw, "state")),
		CredentialExchangeID:   str(raw, "cred_ex_id"),
		RevRegID:               str(raw, "rev_reg_id"),
		CredRevID:              str(raw, "cred_rev_id"),
		CredentialDefinitionID: str(raw, "cred_def_id"),
		CreatedAt:              str(raw, "created_at"),
		UpdatedAt:              str(raw, "updated_at"),
	}, nil
}

func transformProblemReport(_ string, raw map[string]any) (model.Payload, error) {
	thread, _ := raw["~thread"].(map[string]any)
	threadID := str(thread, "thid")
	if threadID == "" {
		threadID = str(raw, "thread_id")
	}
	if threadID == "" {
		return nil, fmt.Errorf("missing %q", "~thread.thid")
	}
	description, _ := raw["description"].(map[string]any)
	return &model.ProblemReport{
		ThreadID:    threadID,
		Description: description,
		State:       NormalizeState(str(raw, "state")),
	}, nil
}
