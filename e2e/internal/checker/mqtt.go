package checker

import (
	"encoding/json"
	"fmt"

	"github.com/saaga0h/curator-platform/e2e/internal/observer"
	"github.com/saaga0h/curator-platform/e2e/internal/scenario"
)

// CheckMQTTExpectation matches the latest message on exp.Topic
func CheckMQTTExpectation(obs *observer.Observer, exp scenario.Expectation) (bool, string, interface{}) {
	msg := obs.Latest(exp.Topic)
	if msg == nil {
		return false, fmt.Sprintf("no message on %s", exp.Topic), nil
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return false, fmt.Sprintf("payload is not a JSON object: %v", err), string(msg.Payload)
	}

	matches, reason := MatchesExpectation(payload, exp.Payload)
	return matches, reason, payload
}
