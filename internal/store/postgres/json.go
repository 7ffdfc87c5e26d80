package postgres

import (
	"github.com/mailcraft/mailcraft/pkg/email"
	"github.com/mailcraft/mailcraft/pkg/schedule"
)

// The jsonb columns are NOT NULL with array or object defaults. A nil Go
// slice or map encodes as SQL NULL, so nils are replaced with their empty
// counterparts before binding.

func emptyAddresses(a []email.Address) []email.Address {
	if a == nil {
		return []email.Address{}
	}
	return a
}

func emptyDescriptors(d []email.Descriptor) []email.Descriptor {
	if d == nil {
		return []email.Descriptor{}
	}
	return d
}

func emptyConditions(c []schedule.Condition) []schedule.Condition {
	if c == nil {
		return []schedule.Condition{}
	}
	return c
}

func emptyMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
