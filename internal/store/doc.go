// Package store defines the persistence interfaces for the application.
// The calendar store is the system of record for events; the event index
// only keeps derived summaries and re-reads this store when it rebuilds.
package store
