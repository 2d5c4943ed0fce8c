package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"bookstore-catalog/catalog"
)

// readPassword securely reads a password with masking when in is a terminal,
// and reads one line otherwise.
func readPassword(in io.Reader, out io.Writer, prompt string) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(out, prompt)
		bytePassword, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		fmt.Fprintln(out) // Add newline after password input
		return strings.TrimSpace(string(bytePassword)), nil
	}

	sc := bufio.NewScanner(in)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return "", err
		}
		return "", errors.New("no password given on stdin")
	}
	return strings.TrimSpace(sc.Text()), nil
}

func parseSellerID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid seller ID: %s", arg)
	}
	return id, nil
}

func (c *cli) sellersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sellers",
		Short: "Manage sellers directly in the store",
	}
	cmd.AddCommand(
		c.sellersListCmd(),
		c.sellersShowCmd(),
		c.sellersAddCmd(),
		c.sellersDeleteCmd(),
		c.sellersCheckPasswordCmd(),
	)
	return cmd
}

func (c *cli) sellersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all sellers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := c.openManager(cmd.Context())
			if err != nil {
				return err
			}
			defer mgr.Close()

			all, err := mgr.ListSellers(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(all.Sellers) == 0 {
				fmt.Fprintln(out, "No sellers in catalog.")
				return nil
			}
			fmt.Fprintf(out, "%-5s %-20s %-20s %-30s\n", "ID", "First name", "Last name", "Email")
			fmt.Fprintln(out, strings.Repeat("-", 78))
			for _, s := range all.Sellers {
				fmt.Fprintln(out, catalog.PrettySeller(s))
			}
			return nil
		},
	}
}

func (c *cli) sellersShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show a seller and the books they list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSellerID(args[0])
			if err != nil {
				return err
			}
			mgr, err := c.openManager(cmd.Context())
			if err != nil {
				return err
			}
			defer mgr.Close()

			s, err := mgr.GetSellerWithBooks(cmd.Context(), id)
			if errors.Is(err, catalog.ErrRecordNotFound) {
				return fmt.Errorf("seller with ID %d not found", id)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s <%s> (ID: %d)\n", s.FirstName, s.LastName, s.Email, s.ID)
			if len(s.Books) == 0 {
				fmt.Fprintln(out, "No books listed.")
				return nil
			}
			fmt.Fprintf(out, "%-5s %-30s %-25s %-6s %-6s\n", "ID", "Title", "Author", "Year", "Pages")
			fmt.Fprintln(out, strings.Repeat("-", 76))
			for _, b := range s.Books {
				fmt.Fprintln(out, catalog.PrettyBook(b))
			}
			return nil
		},
	}
}

func (c *cli) sellersAddCmd() *cobra.Command {
	var in catalog.IncomingSeller
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a seller; the password is read from the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd.InOrStdin(), cmd.OutOrStdout(), fmt.Sprintf("Enter password for %s: ", in.Email))
			if err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
			in.Password = password

			mgr, err := c.openManager(cmd.Context())
			if err != nil {
				return err
			}
			defer mgr.Close()

			s, err := mgr.CreateSeller(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added seller '%s %s' with ID %d\n", s.FirstName, s.LastName, s.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&in.LastName, "last-name", "", "last name")
	cmd.Flags().StringVar(&in.Email, "email", "", "email address, unique across sellers")
	_ = cmd.MarkFlagRequired("first-name")
	_ = cmd.MarkFlagRequired("last-name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (c *cli) sellersDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a seller together with all of their books",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSellerID(args[0])
			if err != nil {
				return err
			}
			mgr, err := c.openManager(cmd.Context())
			if err != nil {
				return err
			}
			defer mgr.Close()

			if err := mgr.DeleteSeller(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seller %d deleted.\n", id)
			return nil
		},
	}
}

func (c *cli) sellersCheckPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-password ID",
		Short: "Verify a seller's password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSellerID(args[0])
			if err != nil {
				return err
			}
			password, err := readPassword(cmd.InOrStdin(), cmd.OutOrStdout(), "Enter password: ")
			if err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}

			mgr, err := c.openManager(cmd.Context())
			if err != nil {
				return err
			}
			defer mgr.Close()

			if err := mgr.CheckSellerPassword(cmd.Context(), id, password); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Password OK.")
			return nil
		},
	}
}
