// Package schema defines the household survey records stored on the device
// and mirrored to the remote store.
//
// # Tables
//
// Five tables make up the durable on-device contract, listed here in the
// order they are synced (parents before dependents):
//
//	households          one row per visited household (household_number is unique)
//	members             family members, FK household_id
//	meal_patterns       meal habits per household, FK household_id
//	member_health_info  health profile per member, FK member_id + household_id
//	immunizations       vaccine record per member, FK member_id + household_id
//
// Every table carries two local bookkeeping columns that are never pushed:
//
//   - synced: 0 until the remote store acknowledged the current revision
//   - revision: bumped on every local write so a stale acknowledgement
//     cannot mark a newer edit as synced
//
// # Derived fields
//
// Member age and classification are computed from the date of birth by the
// pure functions AgeOn, AgeInDays and Classify. They take the reference time
// explicitly so callers (and tests) control "now".
//
// # Validation
//
// Each record type has a Validate method. All validation failures wrap
// ErrInvalid so callers can distinguish them with errors.Is.
package schema
