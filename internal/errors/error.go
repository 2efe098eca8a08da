package errors

import "errors"

var (
	ErrStartFailure         = errors.New("engine failed to start")
	ErrSubmitFailure        = errors.New("failed to submit analysis query")
	ErrPollTimeout          = errors.New("timed out waiting for analysis result")
	ErrPollError            = errors.New("failed to read analysis result")
	ErrConfigValidation     = errors.New("invalid configuration")
	ErrEngineNotRunning     = errors.New("engine is not running")
	ErrEngineAlreadyRunning = errors.New("engine is already running")
	ErrEngineClosed         = errors.New("engine closed its output")
	ErrEngineResponse       = errors.New("engine reported an error")
	ErrHistoryNotFound      = errors.New("history was not found")
	ErrAnalysisNotFound     = errors.New("analysis was not found")
	ErrInternal             = errors.New("internal error")
)
