package intake_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/intake"
	"github.com/aretw0/intake/pkg/config"
)

// ExampleNew shows a complete conversation against an in-memory store.
func ExampleNew() {
	cfg, err := config.Parse([]byte(`
name: contact
fields:
  - name: name
    field_type: text
  - name: email
    field_type: email
escalation_policies:
  - policy_type: keyword
    reason: User asked for a human
    config:
      keywords: [human, agent]
`))
	if err != nil {
		log.Fatal(err)
	}

	agent, err := intake.New(cfg)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	res, err := agent.StartWithID(ctx, "demo")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(res.Text)

	res, _ = agent.Send(ctx, res.SessionID, "Jane Doe")
	fmt.Println(res.Text)

	res, _ = agent.Send(ctx, res.SessionID, "jane@example.com")
	fmt.Println(res.Text)
	fmt.Println(res.Status, res.CollectedData["email"])

	// Output:
	// Hello! I'm here to help collect some information. Could you please provide your name?
	// Thank you. Could you please provide your email?
	// Thank you! We have all the information we need.
	// completed jane@example.com
}

// ExampleAgent_Send_escalation shows a keyword policy handing the conversation to a human.
func ExampleAgent_Send_escalation() {
	cfg, err := config.Parse([]byte(`
fields:
  - name: email
    field_type: email
escalation_policies:
  - policy_type: keyword
    reason: User asked for a human
    config:
      keywords: [human]
`))
	if err != nil {
		log.Fatal(err)
	}
	agent, err := intake.New(cfg)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	res, _ := agent.Start(ctx)
	res, _ = agent.Send(ctx, res.SessionID, "Can I talk to a human please")
	fmt.Println(res.Text)
	fmt.Println(res.Status, res.Escalated)

	// Output:
	// I understand you'd like to speak with a human agent. I'm connecting you now. Thank you for your patience.
	// escalated true
}
