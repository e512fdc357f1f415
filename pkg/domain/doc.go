/*
Package domain contains the core models of the intake engine.

It defines the conversation record that the state machine mutates once per turn,
the field schema it collects against, and the events it emits. The package is kept
free of I/O and persistence concerns so every adapter can share the same types.

# Key Entities

  - FieldDefinition: one piece of information to collect (type, requiredness, pattern).
  - Conversation: the per-session record (message log, field values, pointer, escalation).
  - FieldValue: the collected value of one field with its attempt count and history.
  - LifecycleHooks: observability callbacks fired by the engine.
*/
package domain
