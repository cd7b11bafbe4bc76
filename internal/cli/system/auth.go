package system

import (
	"errors"
	"fmt"

	"github.com/julianstephens/tally/internal/cli"
	"github.com/julianstephens/tally/internal/keyring"
)

// AuthSetTokenCmd stores the sync server bearer token in the OS keyring
type AuthSetTokenCmd struct {
	Token string `arg:"" help:"Bearer token issued by the sync server."`
}

func (cmd *AuthSetTokenCmd) Run(ctx *cli.Context) error {
	if err := keyring.SetToken(cmd.Token); err != nil {
		return err
	}
	ctx.Println("✓ Token stored in OS keyring")
	return nil
}

type AuthClearCmd struct{}

func (cmd *AuthClearCmd) Run(ctx *cli.Context) error {
	if err := keyring.DeleteToken(); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return errors.New("no token found in keyring")
		}
		return err
	}
	ctx.Println("✓ Token deleted from OS keyring")
	return nil
}

type AuthStatusCmd struct{}

func (cmd *AuthStatusCmd) Run(ctx *cli.Context) error {
	if ctx.Config.Token != "" {
		ctx.Printf("✓ Using token from TALLY_TOKEN: %s\n", keyring.Mask(ctx.Config.Token))
		return nil
	}
	if !keyring.IsAvailable() {
		ctx.Println("❌ OS keyring is not available on this system")
		return errors.New("keyring unavailable")
	}
	ctx.Println("✓ OS keyring is available")

	token, err := keyring.GetToken()
	switch {
	case err == nil:
		ctx.Printf("✓ Token stored in keyring: %s\n", keyring.Mask(token))
	case errors.Is(err, keyring.ErrNotFound):
		ctx.Println("ℹ No token stored; run 'tally auth set-token'")
	default:
		return fmt.Errorf("failed to read token: %w", err)
	}
	return nil
}
