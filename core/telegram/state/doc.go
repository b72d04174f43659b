// Package state holds per-chat profiles collected by the intake conversation
// and the storage contract used to keep them between updates.
package state
