/*
Package escalation decides whether a conversation should be handed to a human.

An Engine is built once from the configured policy list. Enabled policies are kept in a
fixed evaluation order (keyword, timeout, sentiment, llm_intent, completion) no matter how
they are listed in configuration; disabled policies are left out entirely. Evaluate returns
the first policy that fires. Policies never mutate the conversation: applying a verdict is
the state machine's job.

New policy types can be plugged in with Register.
*/
package escalation
