// Package coordinator is a single-process development coordinator.
//
// It accepts one envelope per TCP connection, answers CREATE_ARRAY,
// APPLY_OPERATION and GET_RESULT from an in-memory array table, writes one
// reply line and closes. Operations run locally across a fixed number of
// goroutines; there is no partitioning across workers, no replication and no
// recovery. An optional gin admin surface exposes health, array listings and
// prometheus metrics.
package coordinator
