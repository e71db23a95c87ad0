package main

import (
	"fmt"
	"os"
	"sort"

	"golang.org/x/term"

	"agentdev/pkg/config"
	"agentdev/pkg/logx"
)

// SecretsPasswordEnv supplies the secrets password non-interactively.
const SecretsPasswordEnv = "AGENTDEV_SECRETS_PASSWORD"

// runSecrets handles `secrets set NAME VALUE`, `secrets list`, and
// `secrets rm NAME` against the encrypted secrets file.
func runSecrets(projectDir string, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: agentdev secrets <set NAME VALUE | list | rm NAME>")
		return 1
	}

	password, err := secretsPassword()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	secrets := map[string]string{}
	if config.SecretsFileExists(projectDir) {
		secrets, err = config.DecryptSecretsFile(projectDir, password)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
	}
	config.SetDecryptedSecrets(secrets)

	switch args[0] {
	case "set":
		if len(args) != 3 {
			fmt.Fprintln(os.Stderr, "Usage: agentdev secrets set NAME VALUE")
			return 1
		}
		config.SetSecret(args[1], args[2])
		if err := config.SaveSecretsToFile(projectDir, password); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Printf("Stored secret %s.\n", args[1])
		return 0

	case "list":
		names := config.GetDecryptedSecretNames()
		if len(names) == 0 {
			fmt.Println("No secrets stored.")
			return 0
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Println(name)
		}
		return 0

	case "rm":
		if len(args) != 2 {
			fmt.Fprintln(os.Stderr, "Usage: agentdev secrets rm NAME")
			return 1
		}
		if _, ok := secrets[args[1]]; !ok {
			fmt.Fprintf(os.Stderr, "Error: no secret named %s\n", args[1])
			return 1
		}
		config.DeleteSecret(args[1])
		if err := config.SaveSecretsToFile(projectDir, password); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Printf("Removed secret %s.\n", args[1])
		return 0

	default:
		fmt.Fprintf(os.Stderr, "Error: unknown secrets subcommand %q\n", args[0])
		return 1
	}
}

// loadStoredSecrets decrypts the secrets file into memory at startup so
// tool runs and the dev server inherit the stored credentials. Requires
// the password from the environment; without it the file is left alone
// and the tools fall back to whatever the shell provides.
func loadStoredSecrets(projectDir string) {
	if !config.SecretsFileExists(projectDir) {
		return
	}

	password := os.Getenv(SecretsPasswordEnv)
	if password == "" {
		return
	}

	secrets, err := config.DecryptSecretsFile(projectDir, password)
	if err != nil {
		logx.Warnf("Stored secrets unavailable: %v", err)
		return
	}
	config.SetDecryptedSecrets(secrets)
}

// secretsPassword reads the password from the environment or, on a
// terminal, prompts for it.
func secretsPassword() (string, error) {
	if password := os.Getenv(SecretsPasswordEnv); password != "" {
		return password, nil
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", fmt.Errorf("no terminal for password prompt; set %s", SecretsPasswordEnv)
	}

	fmt.Fprint(os.Stderr, "Secrets password: ")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if len(raw) == 0 {
		return "", fmt.Errorf("password cannot be empty")
	}
	return string(raw), nil
}
