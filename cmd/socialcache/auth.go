package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"socialcache/pkg/auth"
	"socialcache/pkg/cachepath"
	"socialcache/pkg/ui"
)

var (
	authNetwork string
	authShow    bool
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage per-account bearer tokens",
	Long: `Manage the bearer tokens sent when fetching images for an account.

Tokens are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables SOCIALCACHE_<NETWORK>_ACCESS_TOKEN (read-only)`,
}

var authSetCmd = &cobra.Command{
	Use:   "set <account>",
	Short: "Store the token for an account",
	Long: `Store the bearer token for an account. The token is read from the
terminal without echo, or from stdin when it is not a terminal.`,
	Example: `  socialcache auth set 7 --network onedrive
  echo "$TOKEN" | socialcache auth set 7 --network dropbox`,
	Args: cobra.ExactArgs(1),
	RunE: runAuthSet,
}

var authGetCmd = &cobra.Command{
	Use:   "get <account>",
	Short: "Show the token stored for an account",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuthGet,
}

var authDeleteCmd = &cobra.Command{
	Use:   "delete <account>",
	Short: "Remove the token stored for an account",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuthDelete,
}

var authListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored tokens with their values masked",
	Args:  cobra.NoArgs,
	RunE:  runAuthList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authSetCmd, authGetCmd, authDeleteCmd, authListCmd)

	for _, c := range []*cobra.Command{authSetCmd, authGetCmd, authDeleteCmd} {
		c.Flags().StringVarP(&authNetwork, "network", "n", "", "social network")
		_ = c.MarkFlagRequired("network")
	}
	authGetCmd.Flags().BoolVar(&authShow, "show", false, "print the token unmasked")
}

func authTarget() (string, error) {
	network, ok := cachepath.ParseSocialNetwork(authNetwork)
	if !ok {
		return "", fmt.Errorf("unknown network %q", authNetwork)
	}
	return network.String(), nil
}

func runAuthSet(cmd *cobra.Command, args []string) error {
	network, err := authTarget()
	if err != nil {
		return err
	}

	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	if term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintf(cmd.ErrOrStderr(), "Access token for %s account %s: ", network, args[0])
	}
	token, err := readSecret(os.Stdin, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("failed to read token: %w", err)
	}
	if token == "" {
		return errors.New("token is empty")
	}

	if err := manager.Store(&auth.Credential{Network: network, Account: args[0], AccessToken: token}); err != nil {
		return err
	}
	ui.PrintSuccess(fmt.Sprintf("Token stored for %s", auth.Key(network, args[0])))
	return nil
}

func runAuthGet(cmd *cobra.Command, args []string) error {
	network, err := authTarget()
	if err != nil {
		return err
	}

	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	cred, err := manager.Retrieve(network, args[0])
	if err != nil {
		return err
	}
	if !authShow {
		cred = auth.Sanitize(cred)
	}
	fmt.Fprintln(cmd.OutOrStdout(), cred.AccessToken)
	return nil
}

func runAuthDelete(cmd *cobra.Command, args []string) error {
	network, err := authTarget()
	if err != nil {
		return err
	}

	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	if err := manager.Delete(network, args[0]); err != nil {
		return err
	}
	ui.PrintSuccess(fmt.Sprintf("Token removed for %s", auth.Key(network, args[0])))
	return nil
}

func runAuthList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	creds, err := manager.List()
	if err != nil {
		return err
	}
	if len(creds) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No stored tokens")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NETWORK\tACCOUNT\tTOKEN\tMODIFIED")
	for _, cred := range creds {
		masked := auth.Sanitize(cred)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", masked.Network, masked.Account, masked.AccessToken,
			masked.LastModified.Local().Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

// readSecret reads one line without echo from a terminal, or plainly otherwise
func readSecret(in *os.File, prompt io.Writer) (string, error) {
	if term.IsTerminal(int(in.Fd())) {
		secret, err := term.ReadPassword(int(in.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(secret)), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
