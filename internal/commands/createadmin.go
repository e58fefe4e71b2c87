package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/klabast/wb-services/calendar42/internal/domain/models"
	"github.com/klabast/wb-services/calendar42/internal/services/auth"
)

// AdminCreator is implemented by the auth service
type AdminCreator interface {
	CreateAdmin(ctx context.Context, email, pass string) (models.User, error)
}

// CreateAdminOptions configures the create-admin prompt
type CreateAdminOptions struct {
	Email          string
	InsecureUnmask bool

	In  io.Reader
	Out io.Writer
}

// CreateAdmin prompts for the missing credentials and grants the admin role.
// An existing account is promoted when the entered password matches it.
func CreateAdmin(ctx context.Context, creator AdminCreator, opts CreateAdminOptions) error {
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	reader := bufio.NewReader(opts.In)

	email := strings.TrimSpace(opts.Email)
	if email == "" {
		fmt.Fprint(opts.Out, "Enter email: ")
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("error reading email: %w", err)
		}
		email = strings.TrimSpace(line)
	}
	if email == "" {
		return errors.New("email cannot be empty")
	}

	var password, passwordConfirm string
	if opts.InsecureUnmask || !isTerminal(opts.In) {
		if opts.InsecureUnmask {
			fmt.Fprintln(opts.Out, "WARNING: Password will be visible on screen!")
		}
		password = readLine(reader, opts.Out, "Enter password:   ")
		passwordConfirm = readLine(reader, opts.Out, "Confirm password: ")
	} else {
		password = readPasswordWithMask(opts.Out, "Enter password:   ")
		passwordConfirm = readPasswordWithMask(opts.Out, "Confirm password: ")
	}

	if password == "" {
		return errors.New("password cannot be empty")
	}
	if password != passwordConfirm {
		return errors.New("passwords do not match")
	}

	user, err := creator.CreateAdmin(ctx, email, password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return fmt.Errorf("%s already exists with a different password", email)
		}
		return err
	}

	fmt.Fprintf(opts.Out, "%s (%s) is now an administrator\n", user.Email, user.ID)
	return nil
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func readLine(reader *bufio.Reader, out io.Writer, prompt string) string {
	fmt.Fprint(out, prompt)
	line, _ := reader.ReadString('\n')
	return strings.TrimRight(line, "\r\n")
}

// readPasswordWithMask reads password input from the terminal and echoes
// asterisks
func readPasswordWithMask(out io.Writer, prompt string) string {
	fmt.Fprint(out, prompt)

	fd := int(syscall.Stdin)
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		// Fallback to hidden input
		password, _ := term.ReadPassword(fd)
		fmt.Fprintln(out)
		return string(password)
	}
	defer term.Restore(fd, oldState)

	var password []rune
	reader := bufio.NewReader(os.Stdin)

	for {
		char, _, err := reader.ReadRune()
		if err != nil {
			break
		}

		switch char {
		case '\n', '\r': // Enter
			fmt.Fprint(out, "\r\n")
			return string(password)
		case 127, 8: // Backspace or Delete
			if len(password) > 0 {
				password = password[:len(password)-1]
				fmt.Fprint(out, "\b \b")
			}
		case 3: // Ctrl+C
			term.Restore(fd, oldState)
			fmt.Fprint(out, "\r\n")
			os.Exit(1)
		default:
			if char >= 32 && char != 127 {
				password = append(password, char)
				fmt.Fprint(out, "*")
			}
		}
	}

	fmt.Fprint(out, "\r\n")
	return string(password)
}
