package queue

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/voltlake/go-aws/utils"
)

const (
	testQueueArn = "arn:aws:sqs:eu-west-1:123456789012:test-queue"
	testTopicArn = "arn:aws:sns:eu-west-1:123456789012:test-topic"
)

func decodePolicy(t *testing.T, raw string) queuePolicy {
	t.Helper()

	var policy queuePolicy
	if err := json.Unmarshal([]byte(raw), &policy); err != nil {
		t.Fatalf("merged policy is not valid JSON: %v", err)
	}
	return policy
}

func TestMergeQueuePolicyCreatesPolicy(t *testing.T) {
	merged, changed, err := mergeQueuePolicy("", testQueueArn, testTopicArn)
	if err != nil {
		t.Fatalf("mergeQueuePolicy() returned error: %v", err)
	}
	if !changed {
		t.Fatal("mergeQueuePolicy() reported no change for a new policy")
	}

	policy := decodePolicy(t, merged)

	if policy.Version != "2012-10-17" {
		t.Errorf("Version = %q, want 2012-10-17", policy.Version)
	}
	if len(policy.Statement) != 1 {
		t.Fatalf("got %d statements, want 1", len(policy.Statement))
	}

	statement := policy.Statement[0]
	if !strings.HasPrefix(statement.Sid, "Sid-") {
		t.Errorf("Sid = %q, want a Sid- prefix", statement.Sid)
	}
	if statement.Effect != "Allow" {
		t.Errorf("Effect = %q, want Allow", statement.Effect)
	}
	if statement.Resource != testQueueArn {
		t.Errorf("Resource = %q, want the queue ARN", statement.Resource)
	}
	if !utils.Contains(statement.Action, "sqs:SendMessage") || !utils.Contains(statement.Action, "sqs:ReceiveMessage") {
		t.Errorf("Action = %v, want send and receive permissions", statement.Action)
	}

	sourceArns := statement.Condition.StringLike["aws:SourceArn"]
	if len(sourceArns) != 1 || sourceArns[0] != testTopicArn {
		t.Errorf("aws:SourceArn = %v, want [%s]", sourceArns, testTopicArn)
	}
}

func TestMergeQueuePolicyAppendsTopic(t *testing.T) {
	otherTopic := "arn:aws:sns:eu-west-1:123456789012:other-topic"

	existing, _, err := mergeQueuePolicy("", testQueueArn, otherTopic)
	if err != nil {
		t.Fatalf("initial merge returned error: %v", err)
	}

	merged, changed, err := mergeQueuePolicy(existing, testQueueArn, testTopicArn)
	if err != nil {
		t.Fatalf("mergeQueuePolicy() returned error: %v", err)
	}
	if !changed {
		t.Fatal("mergeQueuePolicy() reported no change when adding a new topic")
	}

	policy := decodePolicy(t, merged)
	sourceArns := policy.Statement[0].Condition.StringLike["aws:SourceArn"]

	if len(sourceArns) != 2 {
		t.Fatalf("aws:SourceArn = %v, want both topic ARNs", sourceArns)
	}
	if !utils.Contains([]string(sourceArns), otherTopic) || !utils.Contains([]string(sourceArns), testTopicArn) {
		t.Errorf("aws:SourceArn = %v, want both %s and %s", sourceArns, otherTopic, testTopicArn)
	}
}

func TestMergeQueuePolicyIsIdempotent(t *testing.T) {
	existing, _, err := mergeQueuePolicy("", testQueueArn, testTopicArn)
	if err != nil {
		t.Fatalf("initial merge returned error: %v", err)
	}

	merged, changed, err := mergeQueuePolicy(existing, testQueueArn, testTopicArn)
	if err != nil {
		t.Fatalf("mergeQueuePolicy() returned error: %v", err)
	}
	if changed {
		t.Error("mergeQueuePolicy() reported a change for an already subscribed topic")
	}
	if merged != existing {
		t.Error("mergeQueuePolicy() rewrote an unchanged policy")
	}
}

func TestMergeQueuePolicyAcceptsStringSourceArn(t *testing.T) {
	existingTopic := "arn:aws:sns:eu-west-1:123456789012:existing-topic"
	existing := `{"Version":"2012-10-17","Statement":[{"Sid":"s1","Effect":"Allow",` +
		`"Resource":"` + testQueueArn + `",` +
		`"Condition":{"StringLike":{"aws:SourceArn":"` + existingTopic + `"}}}]}`

	merged, changed, err := mergeQueuePolicy(existing, testQueueArn, testTopicArn)
	if err != nil {
		t.Fatalf("mergeQueuePolicy() returned error: %v", err)
	}
	if !changed {
		t.Fatal("mergeQueuePolicy() reported no change")
	}

	policy := decodePolicy(t, merged)
	sourceArns := policy.Statement[0].Condition.StringLike["aws:SourceArn"]

	if len(sourceArns) != 2 {
		t.Fatalf("aws:SourceArn = %v, want the existing and the new topic ARN", sourceArns)
	}
	if !utils.Contains([]string(sourceArns), existingTopic) || !utils.Contains([]string(sourceArns), testTopicArn) {
		t.Errorf("aws:SourceArn = %v, want both %s and %s", sourceArns, existingTopic, testTopicArn)
	}
}

func TestMergeQueuePolicyRejectsMalformedPolicy(t *testing.T) {
	if _, _, err := mergeQueuePolicy("{not json", testQueueArn, testTopicArn); err == nil {
		t.Error("mergeQueuePolicy() succeeded with a malformed existing policy, want error")
	}
}

func TestMergeQueuePolicyKeepsExistingResource(t *testing.T) {
	existing := `{"Version":"2012-10-17","Statement":[{"Sid":"s1","Effect":"Allow","Resource":"arn:aws:sqs:eu-west-1:123456789012:legacy"}]}`

	merged, changed, err := mergeQueuePolicy(existing, testQueueArn, testTopicArn)
	if err != nil {
		t.Fatalf("mergeQueuePolicy() returned error: %v", err)
	}
	if !changed {
		t.Fatal("mergeQueuePolicy() reported no change")
	}

	policy := decodePolicy(t, merged)
	if got := policy.Statement[0].Resource; got != "arn:aws:sqs:eu-west-1:123456789012:legacy" {
		t.Errorf("Resource = %q, want the existing resource to be kept", got)
	}
}
