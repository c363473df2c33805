// Command admin bundles the operator tooling for Monolith: schema
// migrations, demo seeding, story sweeping and admin role management.
package main

import "monolith/cmd/admin/commands"

func main() {
	commands.Execute()
}
