package main

import "github.com/dfcarvalho/jira-epic-helper/cmd/jira-epic-helper/commands"

func main() {
	commands.Execute()
}
