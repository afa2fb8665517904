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

// Package adminapi exposes a read-only JSON view of a CollectorEngine's
// query surface over HTTP: statistics, active fault count, backpressure
// level, and the recent-faults ring. It never touches anything beyond the
// engine's public query methods, so it cannot perturb the report/drain
// path.
package adminapi

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/faultcollector/fccu-core/pkg/fccu"
)

// NewRouter builds a gin engine exposing the admin endpoints for engine.
func NewRouter(engine *fccu.CollectorEngine) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	r.GET("/stats", func(c *gin.Context) {
		stats := engine.GetStatistics()
		c.JSON(200, gin.H{
			"total_reported":    stats.TotalReported,
			"total_processed":   stats.TotalProcessed,
			"total_dropped":     stats.TotalDropped,
			"priority_reported": stats.PriorityReported,
			"priority_dropped":  stats.PriorityDropped,
			"active_count":      engine.ActiveFaultCount(),
			"backpressure":      engine.GetBackpressureLevel().String(),
			"global_state":      engine.GlobalState(),
		})
	})

	r.GET("/faults/active", func(c *gin.Context) {
		c.JSON(200, gin.H{"active_count": engine.ActiveFaultCount()})
	})

	// A distinct prefix: gin's tree rejects a ":index" wildcard next to
	// the static /faults/active and /faults/recent routes.
	r.GET("/fault/:index", func(c *gin.Context) {
		index, err := parseFaultIndex(c.Param("index"))
		if err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}
		c.JSON(200, gin.H{"index": index, "active": engine.IsFaultActive(index)})
	})

	r.GET("/faults/recent", func(c *gin.Context) {
		type recentEntry struct {
			FaultIndex  fccu.FaultIndex `json:"fault_index"`
			Detail      uint32          `json:"detail"`
			Priority    uint8           `json:"priority"`
			TimestampUs uint64          `json:"timestamp_us"`
		}
		var entries []recentEntry
		engine.ForEachRecent(func(info fccu.RecentFaultInfo) bool {
			entries = append(entries, recentEntry{
				FaultIndex:  info.FaultIndex,
				Detail:      info.Detail,
				Priority:    uint8(info.Priority),
				TimestampUs: info.TimestampUs,
			})
			return true
		}, -1)
		c.JSON(200, gin.H{"recent": entries})
	})

	return r
}

func parseFaultIndex(s string) (fccu.FaultIndex, error) {
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, err
	}
	return fccu.FaultIndex(n), nil
}
