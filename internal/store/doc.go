// Package store defines the persistence boundary for meal-plan tasks.
// TaskStore abstracts the durable store from the pipeline and the HTTP
// layer, so status transitions and reads can be exercised without a
// database, and CachedTaskStore adds a read-through cache for tasks that
// can no longer change.
package store
