// Copyright 2026 FCCU Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package busmqtt

import (
	"errors"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// PublishError describes a failed fault-notification publish. Retryable
// failures clear on their own once paho's auto-reconnect catches up with
// the broker; non-retryable ones (a payload that will not marshal, a
// broken topic format) fail identically on every attempt and indicate
// notifier misconfiguration.
type PublishError struct {
	Topic     string
	Retryable bool
	Err       error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("busmqtt: publish %s: %v", e.Topic, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// classifyPublishError wraps a token error from an attempted publish.
// Connection-level failures are the only kind a later drain cycle can
// expect to succeed at; everything else came back from a live broker and
// will be rejected again.
func classifyPublishError(topic string, err error) *PublishError {
	return &PublishError{
		Topic:     topic,
		Retryable: errors.Is(err, mqtt.ErrNotConnected),
		Err:       err,
	}
}

func encodingError(topic string, err error) *PublishError {
	return &PublishError{Topic: topic, Retryable: false, Err: err}
}
