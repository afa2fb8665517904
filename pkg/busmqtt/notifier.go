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

// Package busmqtt adapts fccu.BusNotifier onto an MQTT publish, the
// Go-idiomatic analogue of the original's mccc message-bus integration:
// every drained FaultEvent is marshalled and published on a per-fault
// topic, independent of whatever the hook itself decided to do.
package busmqtt

import (
	"encoding/json"
	"fmt"
	"sync/atomic"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/faultcollector/fccu-core/pkg/fccu"
)

// notification is the wire shape published to MQTT, mirroring the
// original bus demo's FaultNotification struct field-for-field.
type notification struct {
	FaultIndex  fccu.FaultIndex `json:"fault_index"`
	FaultCode   uint32          `json:"fault_code"`
	Detail      uint32          `json:"detail"`
	Priority    uint8           `json:"priority"`
	TimestampUs uint64          `json:"timestamp_us"`
}

// Notifier publishes drained fault events onto an MQTT broker. Failed
// publishes are counted, never propagated: the engine's Drain must not
// fail because of a bus notification.
type Notifier struct {
	client   mqtt.Client
	topicFmt string
	qos      byte
	logger   *zap.SugaredLogger
	dropped  atomic.Uint64
}

// New wraps an already-connected paho client. topicFmt is a fmt string
// taking the fault index, e.g. "fccu/fault/%d".
func New(client mqtt.Client, topicFmt string, qos byte, logger *zap.SugaredLogger) *Notifier {
	if topicFmt == "" {
		topicFmt = "fccu/fault/%d"
	}
	return &Notifier{client: client, topicFmt: topicFmt, qos: qos, logger: logger}
}

// BusNotifier returns the fccu.BusNotifier closure to hand to
// CollectorEngine.SetBusNotifier. Publish is fire-and-forget from Drain's
// point of view: paho's client queues the write and reports completion on
// its own goroutine, and that completion is where failures are logged and
// categorized — Drain itself never blocks on, or fails because of, a bus
// notification.
func (n *Notifier) BusNotifier() fccu.BusNotifier {
	return func(event fccu.FaultEvent, _ any) {
		n.publish(event)
	}
}

func (n *Notifier) publish(event fccu.FaultEvent) {
	msg := notification{
		FaultIndex:  event.FaultIndex,
		FaultCode:   event.FaultCode,
		Detail:      event.Detail,
		Priority:    uint8(event.Priority),
		TimestampUs: event.TimestampUs,
	}
	topic := fmt.Sprintf(n.topicFmt, event.FaultIndex)
	payload, err := json.Marshal(msg)
	if err != nil {
		n.dropped.Add(1)
		n.logger.Errorw("fault notification dropped", "fault_index", event.FaultIndex, "error", encodingError(topic, err))
		return
	}
	token := n.client.Publish(topic, n.qos, false, payload)
	go func() {
		token.Wait()
		if err := token.Error(); err == nil {
			return
		} else if pe := classifyPublishError(topic, err); pe.Retryable {
			n.logger.Warnw("fault notification deferred until broker reconnects", "topic", topic, "error", pe)
		} else {
			n.dropped.Add(1)
			n.logger.Errorw("fault notification dropped", "topic", topic, "error", pe)
		}
	}()
}

// DroppedCount returns the number of notifications lost to encoding
// failures or broker rejections. Connection losses are not counted: with
// auto-reconnect enabled the paho client can still flush those publishes
// once the broker comes back.
func (n *Notifier) DroppedCount() uint64 {
	return n.dropped.Load()
}
