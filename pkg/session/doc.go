/*
Package session serializes access to conversations.

Turns of the same session run one at a time, in arrival order, while turns of
different sessions proceed in parallel. An optional distributed locker extends
the guarantee across replicas sharing a store.
*/
package session
