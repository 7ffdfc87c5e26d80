// Package mailcraft is a transactional email layer: fluent message
// composition, database templates with placeholders, markdown views,
// click/open tracking, multi-provider failover, and persisted scheduling with
// retry and recurrence.
//
// The Client wires the subsystems together; a Builder obtained from
// Client.NewEmail composes one message and ends in Send, Queue, or
// SaveScheduled.
package mailcraft
