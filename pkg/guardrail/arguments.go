package guardrail

import "strings"

// argumentRule restricts the arguments of a program admitted by program
// match. Arguments arrive lowercased.
type argumentRule struct {
	// verbs are the accepted first positional arguments; nil accepts any
	verbs []string
	// flags are the accepted flags, compared by name before '=' or ':'; nil accepts any
	flags []string
	// flagPrefixes extend flags with whole families such as dism /get-*
	flagPrefixes []string
	// valueFlags take the following argument as their value
	valueFlags []string
	// deny lists flags or words that are never accepted
	deny []string
	// maxPositional caps positional arguments; zero means no cap
	maxPositional int
	// noPositional rejects every positional argument
	noPositional bool
	// leadingFlag must be the first argument when set
	leadingFlag string
}

// argumentRules covers every catalog program that has a state-changing mode.
// Programs with verbs or switch-style interfaces use allow-lists of their
// read-only forms; the rest deny their known mutating arguments.
var argumentRules = map[string]argumentRule{
	"systemctl": {
		verbs: []string{
			"status", "show", "cat", "help",
			"list-units", "list-unit-files", "list-sockets", "list-timers",
			"list-jobs", "list-dependencies", "list-machines", "list-automounts", "list-paths",
			"is-active", "is-enabled", "is-failed", "is-system-running",
			"get-default", "show-environment",
		},
		valueFlags: []string{"-t", "--type", "--state", "-p", "--property", "-n", "--lines", "-o", "--output", "-H", "--host", "-M", "--machine"},
	},
	"launchctl": {
		verbs: []string{
			"list", "print", "print-cache", "print-disabled", "blame", "version",
			"help", "managerpid", "manageruid", "managername", "hostinfo", "error", "getenv",
		},
	},
	"log": {
		verbs: []string{"show", "stream", "stats", "help"},
	},
	"bcdedit": {
		flags: []string{"/enum", "/v", "/?"},
	},
	"dism": {
		flags:        []string{"/online", "/english", "/cleanup-image", "/checkhealth", "/scanhealth", "/format", "/featurename", "/packagename", "/capabilityname", "/?"},
		flagPrefixes: []string{"/get-"},
		noPositional: true,
	},
	"ipconfig": {
		flags: []string{"/all", "/displaydns", "/showclassid", "/showclassid6", "/allcompartments", "/?"},
	},
	"sfc": {
		flags: []string{"/verifyonly", "/verifyfile", "/?"},
	},
	"powercfg": {
		flags: []string{
			"/list", "/l", "/query", "/q", "/a", "/availablesleepstates", "/batteryreport",
			"/sleepstudy", "/systemsleepdiagnostics", "/systempowerreport", "/requests",
			"/lastwake", "/devicequery", "/getactivescheme", "/duration", "/?",
		},
	},
	"pmset": {
		leadingFlag: "-g",
		deny:        []string{"sleepnow", "displaysleepnow", "restoredefaults", "schedule", "repeat", "touch", "noidle"},
	},
	"wmic": {
		deny: []string{"call", "create", "delete", "set", "/output", "/append", "/record"},
	},
	"ifconfig": {
		deny:          []string{"up", "down", "add", "delete", "del", "alias", "-alias", "mtu", "netmask", "broadcast", "hw", "inet", "inet6", "ether", "lladdr", "create", "destroy"},
		maxPositional: 1,
	},
	"journalctl": {
		deny: []string{
			"--vacuum-time", "--vacuum-size", "--vacuum-files", "--rotate", "--flush", "--sync",
			"--relinquish-var", "--smart-relinquish-var", "--setup-keys", "--update-catalog",
		},
	},
	"dmesg": {
		deny: []string{"-c", "--read-clear", "-C", "--clear", "-D", "--console-off", "-E", "--console-on", "-n", "--console-level"},
	},
}

// rejectedArgument returns the first argument that takes program outside its
// read-only forms.
func rejectedArgument(program string, args []string) (string, bool) {
	rule, ok := argumentRules[program]
	if !ok {
		return "", false
	}

	if rule.leadingFlag != "" && (len(args) == 0 || args[0] != rule.leadingFlag) {
		if len(args) == 0 {
			return program, true
		}
		return args[0], true
	}

	var positional []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		name := argumentName(arg)

		if containsFold(rule.deny, name) {
			return arg, true
		}

		if !isFlag(arg) {
			positional = append(positional, arg)
			continue
		}
		if rule.flags != nil && !containsFold(rule.flags, name) && !hasAnyPrefix(name, rule.flagPrefixes) {
			return arg, true
		}
		if containsFold(rule.valueFlags, arg) && i+1 < len(args) {
			i++
		}
	}

	if rule.noPositional && len(positional) > 0 {
		return positional[0], true
	}
	if rule.maxPositional > 0 && len(positional) > rule.maxPositional {
		return positional[rule.maxPositional], true
	}
	if rule.verbs != nil && len(positional) > 0 && !containsFold(rule.verbs, positional[0]) {
		return positional[0], true
	}

	return "", false
}

// argumentName strips an inline value: --vacuum-time=3d and /output:x.txt
// are judged by their flag name
func argumentName(arg string) string {
	if i := strings.IndexAny(arg, "=:"); i > 0 {
		return arg[:i]
	}
	return arg
}

func isFlag(arg string) bool {
	return len(arg) > 1 && (arg[0] == '-' || arg[0] == '/')
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}

// powershellExpression returns a character that would make PowerShell
// evaluate an expression inside an allowed cmdlet's arguments
func powershellExpression(command string) (string, bool) {
	if i := strings.IndexAny(command, "()@${}[]"); i >= 0 {
		return command[i : i+1], true
	}
	return "", false
}
