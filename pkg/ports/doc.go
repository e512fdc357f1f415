/*
Package ports defines the driven ports (interfaces) of the intake engine.

These interfaces decouple the conversation state machine from persistence and from
the language capabilities it consumes, so each can be swapped per deployment.

# Key Interfaces

  - ConversationStore: persists conversation records keyed by session id.
  - DistributedLocker: serializes turns for one session across replicas.
  - Extractor: pulls a field value out of a free-form message.
  - SentimentScorer: scores a window of user messages in [-1, 1].
  - IntentClassifier: labels a message for escalation, correction or relevance checks.
*/
package ports
