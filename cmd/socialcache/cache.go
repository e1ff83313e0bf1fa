package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"socialcache/internal/downloader"
	"socialcache/pkg/cachepath"
	"socialcache/pkg/database"
	"socialcache/pkg/logger"
	"socialcache/pkg/providers"
)

var (
	resolveNetwork    string
	resolveIdentifier string
	resolveURL        string
	resolveMime       string
	resolveType       string

	listNetwork string
)

// resolveCmd represents the resolve command
var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Print the cache path an image would be stored at",
	Long: `Print the local path the given network would cache an image at.

Facebook paths depend on the remote URL, OneDrive paths on the identifier and
image type, Dropbox paths on the identifier and content type.`,
	Example: `  socialcache resolve --network facebook --identifier 1001 --url https://graph.example.com/1001/picture
  socialcache resolve --network dropbox --identifier id:abc --mime image/png`,
	Args: cobra.NoArgs,
	RunE: runResolve,
}

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached images recorded in the index",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(listCmd)

	resolveCmd.Flags().StringVarP(&resolveNetwork, "network", "n", "", "social network (facebook, onedrive, dropbox)")
	resolveCmd.Flags().StringVar(&resolveIdentifier, "identifier", "", "image identifier")
	resolveCmd.Flags().StringVar(&resolveURL, "url", "", "remote image URL")
	resolveCmd.Flags().StringVar(&resolveMime, "mime", "", "content type of the downloaded body")
	resolveCmd.Flags().StringVarP(&resolveType, "type", "t", database.ImageTypeFull, "image type (thumbnail, full)")
	_ = resolveCmd.MarkFlagRequired("network")
	_ = resolveCmd.MarkFlagRequired("identifier")

	listCmd.Flags().StringVarP(&listNetwork, "network", "n", "", "only list this network")
}

func runResolve(cmd *cobra.Command, args []string) error {
	network, ok := cachepath.ParseSocialNetwork(resolveNetwork)
	if !ok {
		return fmt.Errorf("unknown network %q", resolveNetwork)
	}

	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}

	provider, err := providers.New(network, cachepath.Resolver{Root: cfg.Cache.RootDirectory}, nil, logger.GetLogger())
	if err != nil {
		return err
	}

	md := downloader.Metadata{
		providers.KeyIdentifier: resolveIdentifier,
		providers.KeyType:       resolveType,
	}
	if resolveURL != "" {
		md[providers.KeyURL] = resolveURL
	}

	path := provider.ResolvePath(resolveURL, md, resolveMime)
	if path == "" {
		return fmt.Errorf("no cache path for identifier %q", resolveIdentifier)
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	if listNetwork != "" {
		if _, ok := cachepath.ParseSocialNetwork(listNetwork); !ok {
			return fmt.Errorf("unknown network %q", listNetwork)
		}
	}

	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}
	if _, err := os.Stat(cfg.Cache.DatabasePath); os.IsNotExist(err) {
		fmt.Fprintln(cmd.OutOrStdout(), "No images cached yet")
		return nil
	}

	store, err := database.Open(cfg.Cache.DatabasePath, logger.GetLogger())
	if err != nil {
		return err
	}
	defer store.Close()

	images, err := store.ListImages(cmd.Context(), listNetwork)
	if err != nil {
		return err
	}
	if len(images) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No images cached yet")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NETWORK\tACCOUNT\tIDENTIFIER\tTYPE\tCACHED\tPATH")
	for _, img := range images {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\n",
			img.Network, img.AccountID, img.Identifier, img.ImageType,
			img.CachedAt.Local().Format("2006-01-02 15:04"), img.FilePath)
	}
	return w.Flush()
}
