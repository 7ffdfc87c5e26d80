// Package queue runs asynchronous sends and the periodic scheduling passes
// on River, Postgres-backed so queued work survives restarts and rides the
// same database as the rest of the system.
//
// Two job kinds exist: a queued send (payload: the log UUID snapshotted at
// queue time) and named periodic tasks driven by cron expressions (batch
// processing, recurrence maintenance, cleanup).
package queue
