package model

// Topic is a canonical event category, independent of agent-native naming.
type Topic string

const (
	TopicConnections     Topic = "connections"
	TopicCredentials     Topic = "credentials"
	TopicCredentialsIndy Topic = "credentials_indy"
	TopicCredentialsLD   Topic = "credentials_ld"
	TopicProofs          Topic = "proofs"
	TopicEndorsements    Topic = "endorsements"
	TopicBasicMessages   Topic = "basic-messages"
	TopicOOB             Topic = "oob"
	TopicRevocation      Topic = "revocation"
	TopicIssuerCredRev   Topic = "issuer_cred_rev"
	TopicProblemReport   Topic = "problem_report"
)

// Topics lists every canonical topic in a stable order.
var Topics = []Topic{
	TopicConnections,
	TopicCredentials,
	TopicCredentialsIndy,
	TopicCredentialsLD,
	TopicProofs,
	TopicEndorsements,
	TopicBasicMessages,
	TopicOOB,
	TopicRevocation,
	TopicIssuerCredRev,
	TopicProblemReport,
}

func (t Topic) String() string { return string(t) }

// Valid reports whether t is one of the canonical topics.
func (t Topic) Valid() bool {
	for _, known := range Topics {
		if t == known {
			return true
		}
	}
	return false
}

// DefaultAdminWalletID is the reserved wallet scope of the administrative agent.
const DefaultAdminWalletID = "admin"
