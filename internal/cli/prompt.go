package cli

import (
	"fmt"
	"os"

	"github.com/AlecAivazis/survey/v2"

	"github.com/GlueOps/remote-sourcemap-loader/pkg/host"
)

func promptOverwrite(path string) (host.Decision, error) {
	fmt.Fprintf(os.Stderr, "File already exists: %s\n", path)

	options := []string{
		"Yes",
		"No",
		"Yes to all remaining",
		"No to all remaining",
		"Abort",
	}

	var selection string
	prompt := &survey.Select{
		Message: "Overwrite this file?",
		Options: options,
	}

	if err := survey.AskOne(prompt, &selection); err != nil {
		return host.Abort, err
	}

	switch selection {
	case "Yes":
		return host.Yes, nil
	case "No":
		return host.No, nil
	case "Yes to all remaining":
		return host.YesToAll, nil
	case "No to all remaining":
		return host.NoToAll, nil
	default:
		return host.Abort, nil
	}
}
