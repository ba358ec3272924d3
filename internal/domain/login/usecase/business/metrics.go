package business

import "time"

type nopMetrics struct{}

func (nopMetrics) RecordFlow(string, time.Duration) {}
func (nopMetrics) RecordSignal(string)              {}
func (nopMetrics) RecordStatusPush(int)             {}
func (nopMetrics) RecordCredentialSave(error)       {}
func (nopMetrics) RecordInvalidation(int64)         {}
func (nopMetrics) FlowStarted()                     {}
func (nopMetrics) FlowFinished()                    {}
