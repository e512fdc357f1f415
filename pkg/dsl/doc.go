/*
Package dsl provides a Go DSL for building agent configurations in code.

It is the programmatic counterpart of the YAML files read by package config: the same
defaults apply and Build runs the same validation, so a configuration built here behaves
exactly like one loaded from disk. This is useful for tests, for embedding a fixed agent
in a binary, and for generating configurations dynamically.

Example usage:

	b := dsl.New("contact")
	b.Personality(domain.ToneFriendly, domain.FormalityInformal).Emoji(true)

	b.Field("name").Hint("your full name")
	b.Field("email").Type(domain.FieldEmail)
	b.Field("phone").Type(domain.FieldPhone).Optional()

	b.Escalate("User asked for a human").Keywords("human", "agent")
	b.Escalate("User is frustrated").Sentiment(-0.5, 3)

	cfg, err := b.Build()
	// ... pass cfg to intake.New(...)
*/
package dsl
