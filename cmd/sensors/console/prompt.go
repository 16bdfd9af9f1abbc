package console

import (
	"strings"

	"github.com/chzyer/readline"
)

const (
	Yes = "y"
	No  = "n"
)

var yesNoConstraints = []string{Yes, No}

// readLine shows prompt and returns one line of input.
var readLine = func(prompt string) (string, error) {
	rl, err := readline.New(prompt)
	if err != nil {
		return "", err
	}
	defer func() { _ = rl.Close() }()
	return rl.Readline()
}

func YesOrNo(question string) (string, error) {
	return Prompt(question, yesNoConstraints...)
}

// Prompt asks question and returns the answer. With constraints the answer
// is one of them, the first being the default for empty or unknown input.
func Prompt(question string, constraints ...string) (string, error) {
	response, err := readLine(promptLine(question, constraints))
	if err != nil {
		return "", err
	}
	if len(constraints) == 0 {
		return response, nil
	}
	return constrain(response, constraints), nil
}

// promptLine renders "question [Y/n]:" with the default capitalized.
func promptLine(question string, constraints []string) string {
	if len(constraints) == 0 {
		return question
	}
	options := make([]string, len(constraints))
	copy(options, constraints)
	options[0] = strings.ToUpper(options[0])
	return question + " [" + strings.Join(options, "/") + "]:"
}

func constrain(response string, constraints []string) string {
	normalized := strings.ToLower(strings.TrimSpace(response))
	for _, c := range constraints {
		if normalized == c {
			return c
		}
	}
	return constraints[0]
}
