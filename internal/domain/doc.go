// Package domain defines the core entities shared by the scheduler and the
// event index: calendar events, their priorities, and the validation errors
// that accompany them. Entities validate themselves on construction so that
// invalid records never reach the index or the external store.
package domain
