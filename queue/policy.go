package queue

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/voltlake/go-aws/utils"
)

// queuePolicy models the subset of the SQS resource policy this package
// manages: a single statement allowing a topic to deliver to the queue.
type queuePolicy struct {
	Version   string            `json:"Version"`
	Statement []policyStatement `json:"Statement"`
}

type policyStatement struct {
	Sid       string            `json:"Sid,omitempty"`
	Effect    string            `json:"Effect"`
	Principal map[string]string `json:"Principal,omitempty"`
	Action    []string          `json:"Action,omitempty"`
	Resource  string            `json:"Resource,omitempty"`
	Condition *policyCondition  `json:"Condition,omitempty"`
}

type policyCondition struct {
	StringLike map[string]stringList `json:"StringLike,omitempty"`
}

// stringList accepts both JSON encodings AWS uses for condition values: a
// single string or a list of strings.
type stringList []string

func (s *stringList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*s = stringList{single}
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}

	*s = stringList(list)
	return nil
}

func newQueuePolicy() queuePolicy {
	return queuePolicy{
		Version: "2012-10-17",
		Statement: []policyStatement{
			{
				Sid:       "Sid-" + uuid.NewString(),
				Effect:    "Allow",
				Principal: map[string]string{"AWS": "*"},
				Action:    []string{"sqs:SendMessage", "sqs:ReceiveMessage"},
			},
		},
	}
}

// mergeQueuePolicy adds topicArn as an allowed aws:SourceArn on the queue's
// policy, creating the policy when the queue has none. It returns the policy
// JSON to set and whether anything changed.
func mergeQueuePolicy(existing, queueArn, topicArn string) (string, bool, error) {
	policy := newQueuePolicy()

	if existing != "" {
		if err := json.Unmarshal([]byte(existing), &policy); err != nil {
			return "", false, fmt.Errorf("failed to decode existing queue policy: %w", err)
		}
	}

	if len(policy.Statement) == 0 {
		policy = newQueuePolicy()
	}

	statement := &policy.Statement[0]
	statement.Resource = utils.StringOrDefault(statement.Resource, queueArn)

	if statement.Condition == nil {
		statement.Condition = &policyCondition{}
	}
	if statement.Condition.StringLike == nil {
		statement.Condition.StringLike = map[string]stringList{}
	}

	sourceArns := statement.Condition.StringLike["aws:SourceArn"]

	if utils.Contains([]string(sourceArns), topicArn) {
		return existing, false, nil
	}

	statement.Condition.StringLike["aws:SourceArn"] = append(sourceArns, topicArn)

	merged, err := json.Marshal(policy)
	if err != nil {
		return "", false, fmt.Errorf("failed to encode queue policy: %w", err)
	}

	return string(merged), true, nil
}
