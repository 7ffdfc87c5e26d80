package sender

import "errors"

var (
	// ErrProviderNotFound indicates no provider is registered under the name.
	ErrProviderNotFound = errors.New("sender: provider not found")

	// ErrNoProviders indicates the failover order is empty.
	ErrNoProviders = errors.New("sender: no providers configured")

	// ErrAllProvidersFailed indicates every provider in the failover order
	// failed. The last provider's error is joined in.
	ErrAllProvidersFailed = errors.New("sender: all providers failed")
)
