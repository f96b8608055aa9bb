package erp

import (
	"errors"
	"fmt"
)

var ErrEmptyResponse = errors.New("empty response from AFAS")

// APIError is a non-2xx answer from the AFAS REST API.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("afas: %s: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("afas: %s", e.Status)
}

// FeedFetchError is returned when one of the reconciliation feeds could not be
// fetched. The whole reconciliation is aborted when this happens.
type FeedFetchError struct {
	Feed      string
	Connector string
	Err       error
}

func (e *FeedFetchError) Error() string {
	return fmt.Sprintf("failed to fetch feed %s (%s): %v", e.Feed, e.Connector, e.Err)
}

func (e *FeedFetchError) Unwrap() error {
	return e.Err
}

func NewFeedFetchError(feed, connector string, err error) *FeedFetchError {
	return &FeedFetchError{Feed: feed, Connector: connector, Err: err}
}
