// cloudkv is a small client CLI for the cloudkv HTTP API.
package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var (
	baseURL  string
	readKey  string
	writeKey string
)

var rootCmd = &cobra.Command{
	Use:   "cloudkv",
	Short: "Client for a cloudkv key-value hosting server",
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&baseURL, "base-url", "u", envOr("CLOUDKV_BASE_URL", "http://localhost:8000"), "Server base URL")
	rootCmd.PersistentFlags().StringVar(&readKey, "read-key", os.Getenv("CLOUDKV_READ_KEY"), "Namespace read key")
	rootCmd.PersistentFlags().StringVar(&writeKey, "write-key", os.Getenv("CLOUDKV_WRITE_KEY"), "Namespace write key")

	rootCmd.AddCommand(createNamespaceCmd, getCmd, setCmd, delCmd, keysCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var createNamespaceCmd = &cobra.Command{
	Use:   "create-namespace",
	Short: "Create a new namespace and print its credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := request(http.MethodPost, baseURL+"/create", nil, nil)
		if err != nil {
			return err
		}
		fmt.Println(string(body))
		fmt.Fprintln(os.Stderr, "store the write key now; it is never shown again")
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print the value stored under a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireReadKey(); err != nil {
			return err
		}
		body, err := request(http.MethodGet, keyURL(args[0]), nil, nil)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(body)
		return err
	},
}

var setCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Store a value under a key (use - to read the value from stdin)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireWriteKey(); err != nil {
			return err
		}
		value := []byte(args[1])
		if args[1] == "-" {
			var err error
			value, err = io.ReadAll(os.Stdin)
			if err != nil {
				return err
			}
		}
		headers := map[string]string{"Authorization": writeKey}
		if ct, _ := cmd.Flags().GetString("content-type"); ct != "" {
			headers["Content-Type"] = ct
		}
		if ttl, _ := cmd.Flags().GetInt64("ttl"); ttl > 0 {
			headers["TTL"] = strconv.FormatInt(ttl, 10)
		}
		body, err := request(http.MethodPost, keyURL(args[0]), value, headers)
		if err != nil {
			return err
		}
		fmt.Println(string(body))
		return nil
	},
}

var delCmd = &cobra.Command{
	Use:   "del <key>",
	Short: "Delete a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireWriteKey(); err != nil {
			return err
		}
		body, err := request(http.MethodDelete, keyURL(args[0]), nil, map[string]string{"Authorization": writeKey})
		if err != nil {
			return err
		}
		fmt.Println(string(body))
		return nil
	},
}

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List keys in the namespace",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireReadKey(); err != nil {
			return err
		}
		url := strings.TrimRight(baseURL, "/") + "/" + readKey + "/"
		var params []string
		if like, _ := cmd.Flags().GetString("like"); like != "" {
			params = append(params, "like="+like)
		}
		if offset, _ := cmd.Flags().GetInt("offset"); offset > 0 {
			params = append(params, "offset="+strconv.Itoa(offset))
		}
		if len(params) > 0 {
			url += "?" + strings.Join(params, "&")
		}
		body, err := request(http.MethodGet, url, nil, nil)
		if err != nil {
			return err
		}
		fmt.Println(string(body))
		return nil
	},
}

func init() {
	setCmd.Flags().String("content-type", "", "Content type stored with the value")
	setCmd.Flags().Int64("ttl", 0, "Time to live in seconds (default: maximum)")
	keysCmd.Flags().String("like", "", "Pattern filter (% = any run, _ = one character)")
	keysCmd.Flags().Int("offset", 0, "Pagination offset")
}

func keyURL(key string) string {
	return strings.TrimRight(baseURL, "/") + "/" + readKey + "/" + key
}

func requireReadKey() error {
	if readKey == "" {
		return fmt.Errorf("a read key is required (--read-key or CLOUDKV_READ_KEY)")
	}
	return nil
}

func requireWriteKey() error {
	if err := requireReadKey(); err != nil {
		return err
	}
	if writeKey == "" {
		return fmt.Errorf("a write key is required (--write-key or CLOUDKV_WRITE_KEY)")
	}
	return nil
}

func request(method, url string, body []byte, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequest(method, url, strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("unexpected %d response: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return respBody, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
