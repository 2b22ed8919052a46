package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/trustcore/internal/security/password"
	"github.com/dropDatabas3/trustcore/internal/security/secretbox"
)

func readSecret(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", errors.New("secreto vacío (usar --secret o stdin)")
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// hash-secret genera un hash argon2id (PHC) para un PIN o password.
// Sin --secret lee una línea de stdin.
func hashSecretCmd() *cobra.Command {
	var secret string
	cmd := &cobra.Command{
		Use:   "hash-secret",
		Short: "Genera el hash argon2id (formato PHC) de un secreto",
		RunE: func(cmd *cobra.Command, _ []string) error {
			plain, err := readSecret(secret)
			if err != nil {
				return err
			}
			phc, err := password.Hash(password.Default, plain)
			if err != nil {
				return err
			}
			fmt.Println(phc)
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "Secreto en claro (evitar en shells con historial)")
	return cmd
}

// seal-secret cifra un valor de config (DSN, URL AMQP, admin key) con
// SECRETBOX_MASTER_KEY. El resultado va en el YAML/env con prefijo "enc:".
func sealSecretCmd() *cobra.Command {
	var secret string
	cmd := &cobra.Command{
		Use:   "seal-secret",
		Short: "Cifra un valor de configuración con SECRETBOX_MASTER_KEY",
		RunE: func(cmd *cobra.Command, _ []string) error {
			plain, err := readSecret(secret)
			if err != nil {
				return err
			}
			b, err := secretbox.FromEnv()
			if err != nil {
				return err
			}
			sealed, err := b.Seal(plain)
			if err != nil {
				return err
			}
			fmt.Println(secretbox.Prefix + sealed)
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "Valor en claro")
	return cmd
}
