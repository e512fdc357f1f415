/*
Package intake runs conversations that collect a configured list of fields from a user.

Every user message is one turn through a fixed state machine:

	check_escalation -> check_correction -> check_off_topic -> extract_field -> validate
	                                                         \-> prompt_next | escalate | complete

Escalation policies (keyword, timeout, sentiment, llm_intent, completion) are evaluated in a
fixed order and the first one that fires hands the conversation to a human. Corrections of
already collected values are detected before relevance, and a turn always yields a reply:
collaborator failures degrade to deterministic fallbacks instead of failing the turn.

# Usage

	cfg, err := config.Load("configs/support.yaml")
	if err != nil {
		log.Fatal(err)
	}
	agent, err := intake.New(cfg, intake.WithStore(memory.NewStore()))
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	res, _ := agent.Start(ctx)
	fmt.Println(res.Text) // greeting + first question

	res, err = agent.Send(ctx, res.SessionID, "Jane Doe")

Turns of the same session are serialized in arrival order; different sessions run in
parallel. Pass WithLocker to extend the serialization across processes.
*/
package intake
