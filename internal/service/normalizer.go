package service

import "github.com/webitel/webhooks-service/internal/domain/model"

// agentTopics maps agent-native webhook topics onto canonical topics.
var agentTopics = map[string]model.Topic{
	"connections":                    model.TopicConnections,
	"issue_credential":               model.TopicCredentials,
	"issue_credential_v2_0":          model.TopicCredentials,
	"issue_credential_v2_0_indy":     model.TopicCredentialsIndy,
	"issue_credential_v2_0_ld_proof": model.TopicCredentialsLD,
	"present_proof":                  model.TopicProofs,
	"present_proof_v2_0":             model.TopicProofs,
	"endorse_transaction":            model.TopicEndorsements,
	"basicmessages":                  model.TopicBasicMessages,
	"out_of_band":                    model.TopicOOB,
	"revocation_registry":            model.TopicRevocation,
	"issuer_cred_rev":                model.TopicIssuerCredRev,
	"problem_report":                 model.TopicProblemReport,
}

// NormalizeTopic returns the canonical topic of an agent topic.
func NormalizeTopic(agentTopic string) (model.Topic, bool) {
	topic, ok := agentTopics[agentTopic]
	return topic, ok
}
