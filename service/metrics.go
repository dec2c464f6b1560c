package service

import (
	"sync"
	"time"
)

// MetricsCollector tracks timing for the two interesting operations:
// ballot submission and the decrypt-and-tally run. Decrypt-and-tally is
// slow on purpose (a password key derivation per vote), so its timings
// are worth watching separately.
type MetricsCollector struct {
	mu sync.RWMutex

	submissionStartTime time.Time
	submissionEndTime   time.Time
	submissionCount     int
	submissionTotalTime time.Duration

	votingPhaseStarted   bool
	votingPhaseStartTime time.Time
	votingPhaseEndTime   time.Time

	decryptStartTime time.Time
	decryptEndTime   time.Time
	decryptCount     int
	decryptTotalTime time.Duration
}

// OperationMetrics contains timing information for an operation.
type OperationMetrics struct {
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	Count          int       `json:"count"`
	ProcessingTime int64     `json:"processing_time_ms"`
}

// VotingPhaseMetrics covers the open-to-close voting window.
type VotingPhaseMetrics struct {
	Started   bool      `json:"started"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Duration  int64     `json:"duration_ms"`
}

// MetricsResponse provides the metrics for all operations.
type MetricsResponse struct {
	Submission   OperationMetrics   `json:"submission"`
	DecryptTally OperationMetrics   `json:"decrypt_tally"`
	VotingPhase  VotingPhaseMetrics `json:"voting_phase"`
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{}
}

// StartVotingPhase marks the voting window open.
func (mc *MetricsCollector) StartVotingPhase() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.votingPhaseStarted = true
	mc.votingPhaseStartTime = time.Now()
	mc.votingPhaseEndTime = time.Time{}
}

// EndVotingPhase marks the voting window closed.
func (mc *MetricsCollector) EndVotingPhase() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if mc.votingPhaseStarted && mc.votingPhaseEndTime.IsZero() {
		mc.votingPhaseEndTime = time.Now()
	}
}

// RecordSubmission adds one accepted ballot's processing time.
func (mc *MetricsCollector) RecordSubmission(d time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	now := time.Now()
	if mc.submissionCount == 0 {
		mc.submissionStartTime = now.Add(-d)
	}
	mc.submissionEndTime = now
	mc.submissionCount++
	mc.submissionTotalTime += d
}

// RecordDecryptTally adds one decrypt-and-tally run's processing time.
func (mc *MetricsCollector) RecordDecryptTally(d time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	now := time.Now()
	if mc.decryptCount == 0 {
		mc.decryptStartTime = now.Add(-d)
	}
	mc.decryptEndTime = now
	mc.decryptCount++
	mc.decryptTotalTime += d
}

// Snapshot returns the current metrics.
func (mc *MetricsCollector) Snapshot() MetricsResponse {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	phase := VotingPhaseMetrics{
		Started:   mc.votingPhaseStarted,
		StartTime: mc.votingPhaseStartTime,
		EndTime:   mc.votingPhaseEndTime,
	}
	if mc.votingPhaseStarted {
		end := mc.votingPhaseEndTime
		if end.IsZero() {
			end = time.Now()
		}
		phase.Duration = end.Sub(mc.votingPhaseStartTime).Milliseconds()
	}

	return MetricsResponse{
		Submission: OperationMetrics{
			StartTime:      mc.submissionStartTime,
			EndTime:        mc.submissionEndTime,
			Count:          mc.submissionCount,
			ProcessingTime: mc.submissionTotalTime.Milliseconds(),
		},
		DecryptTally: OperationMetrics{
			StartTime:      mc.decryptStartTime,
			EndTime:        mc.decryptEndTime,
			Count:          mc.decryptCount,
			ProcessingTime: mc.decryptTotalTime.Milliseconds(),
		},
		VotingPhase: phase,
	}
}
