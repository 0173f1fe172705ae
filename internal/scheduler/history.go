package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"path/filepath"
)

// LoadHistory loads job history from a JSON file.
func LoadHistory(path string) (map[string]*JobHistory, error) {
	history := make(map[string]*JobHistory)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Printf("INFO: Job history file not found at %s, starting with empty history", path)
		return history, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var historyList []JobHistory
	if err := json.Unmarshal(data, &historyList); err != nil {
		return nil, err
	}

	for i := range historyList {
		history[historyList[i].JobID] = &historyList[i]
	}

	log.Printf("INFO: Loaded job history for %d jobs from %s", len(history), path)
	return history, nil
}

// SaveHistory saves job history to a JSON file.
func SaveHistory(path string, history map[string]*JobHistory) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	var historyList []JobHistory
	for _, h := range history {
		historyList = append(historyList, *h)
	}

	data, err := json.MarshalIndent(historyList, "", "  ")
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return err
	}

	log.Printf("DEBUG: Saved job history for %d jobs to %s", len(history), path)
	return nil
}

func (s *Scheduler) updateHistory(result JobResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, exists := s.history[result.JobID]
	if !exists {
		h = &JobHistory{JobID: result.JobID}
		s.history[result.JobID] = h
	}

	h.LastRun = result.EndTime
	h.LastDuration = result.EndTime.Sub(result.StartTime).Milliseconds()
	h.RunCount++

	if result.Success {
		h.LastStatus = "success"
		h.SuccessCount++
	} else if errors.Is(result.Error, context.DeadlineExceeded) {
		h.LastStatus = "timeout"
		h.FailureCount++
	} else {
		h.LastStatus = "failure"
		h.FailureCount++
	}

	log.Printf("DEBUG: Updated history for job '%s': status=%s, duration=%dms, runs=%d, success=%d, failures=%d",
		result.JobID, h.LastStatus, h.LastDuration, h.RunCount, h.SuccessCount, h.FailureCount)
}
