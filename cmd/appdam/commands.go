package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/higgyo/app-dam/internal/app/usecase"
	"github.com/higgyo/app-dam/internal/domain"
	"github.com/higgyo/app-dam/internal/pkg/errs"
)

type cli struct {
	open func(ctx context.Context) (*app, error)
	app  *app
}

func (c *cli) close() {
	if c.app != nil {
		c.app.close()
	}
}

// root builds a fresh command tree. The shell builds one per input line, all sharing c.app.
func (c *cli) root() *cobra.Command {
	root := &cobra.Command{
		Use:           "appdam",
		Short:         "Chat rooms with location sharing",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if c.app != nil {
				return nil
			}
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			c.app = a
			a.session.Restore(cmd.Context())
			return nil
		},
	}

	root.AddCommand(
		c.registerCmd(),
		c.loginCmd(),
		c.logoutCmd(),
		c.whoamiCmd(),
		c.updateUserCmd(),
		c.deleteUserCmd(),
		c.createRoomCmd(),
		c.enterRoomCmd(),
		c.roomsCmd(),
		c.sendCmd(),
		c.historyCmd(),
		c.watchCmd(),
		c.mediaURLCmd(),
		c.shellCmd(),
	)
	return root
}

// currentUser fails when nobody is signed in.
func (c *cli) currentUser() (*domain.User, error) {
	u := c.app.session.User()
	if u == nil {
		return nil, errs.NewError(errs.ErrUnauthorized)
	}
	return u, nil
}

func printUser(w io.Writer, u domain.User) {
	fmt.Fprintf(w, "%s <%s> id=%s", u.Name(), u.Email(), u.ID())
	if loc, ok := u.Location(); ok {
		fmt.Fprintf(w, " location=%.6f,%.6f", loc.Latitude(), loc.Longitude())
	}
	fmt.Fprintln(w)
}

func printRoom(w io.Writer, r domain.Room) {
	fmt.Fprintf(w, "%s id=%s code=%s\n", r.Name(), r.ID(), r.Code())
}

func printMessage(w io.Writer, m domain.Message) {
	at := m.CreatedAt().Local().Format(time.TimeOnly)
	if m.Type().IsMedia() {
		fmt.Fprintf(w, "[%s] %s sent %s %s", at, m.SenderID(), m.Type(), m.FileURL())
		if m.Content() != "" {
			fmt.Fprintf(w, " %q", m.Content())
		}
		fmt.Fprintln(w)
		return
	}
	fmt.Fprintf(w, "[%s] %s: %s\n", at, m.SenderID(), m.Content())
}

// locationFlags registers --lat and --lng and returns their values, nil when not given.
func locationFlags(cmd *cobra.Command) func() (*float64, *float64) {
	var lat, lng float64
	cmd.Flags().Float64Var(&lat, "lat", 0, "latitude to share")
	cmd.Flags().Float64Var(&lng, "lng", 0, "longitude to share")

	return func() (*float64, *float64) {
		var latP, lngP *float64
		if cmd.Flags().Changed("lat") {
			latP = &lat
		}
		if cmd.Flags().Changed("lng") {
			lngP = &lng
		}
		return latP, lngP
	}
}

func (c *cli) registerCmd() *cobra.Command {
	var p usecase.RegisterParams
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
	}
	location := locationFlags(cmd)
	cmd.Flags().StringVar(&p.Name, "name", "", "display name")
	cmd.Flags().StringVar(&p.Email, "email", "", "email address")
	cmd.Flags().StringVar(&p.Password, "password", "", "password, at least 8 characters")

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		p.Latitude, p.Longitude = location()
		u, err := c.app.session.Register(cmd.Context(), p)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), "Registered ")
		printUser(cmd.OutOrStdout(), u)
		return nil
	}
	return cmd
}

func (c *cli) loginCmd() *cobra.Command {
	var p usecase.LoginParams
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			u, err := c.app.session.Login(cmd.Context(), p)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), "Signed in as ")
			printUser(cmd.OutOrStdout(), u)
			return nil
		},
	}
	cmd.Flags().StringVar(&p.Email, "email", "", "email address")
	cmd.Flags().StringVar(&p.Password, "password", "", "password")
	return cmd
}

func (c *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the local session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := c.app.session.Logout(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return err
		},
	}
}

func (c *cli) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the session state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap := c.app.session.Snapshot()
			fmt.Fprintln(cmd.OutOrStdout(), snap.State)
			if snap.User != nil {
				printUser(cmd.OutOrStdout(), *snap.User)
			}
			return nil
		},
	}
}

func (c *cli) updateUserCmd() *cobra.Command {
	var name, email, password string
	cmd := &cobra.Command{
		Use:   "update-user",
		Short: "Change the signed-in account; flags left out keep their value",
		Args:  cobra.NoArgs,
	}
	location := locationFlags(cmd)
	cmd.Flags().StringVar(&name, "name", "", "new display name")
	cmd.Flags().StringVar(&email, "email", "", "new email address")
	cmd.Flags().StringVar(&password, "password", "", "new password")

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		current, err := c.currentUser()
		if err != nil {
			return err
		}

		p := usecase.UpdateUserParams{ID: current.ID()}
		if cmd.Flags().Changed("name") {
			p.Name = &name
		}
		if cmd.Flags().Changed("email") {
			p.Email = &email
		}
		if cmd.Flags().Changed("password") {
			p.Password = &password
		}
		p.Latitude, p.Longitude = location()

		u, err := c.app.session.UpdateUser(cmd.Context(), p)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), "Updated ")
		printUser(cmd.OutOrStdout(), u)
		return nil
	}
	return cmd
}

func (c *cli) deleteUserCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-user",
		Short: "Delete the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			current, err := c.currentUser()
			if err != nil {
				return err
			}
			if err := c.app.session.DeleteUser(cmd.Context(), current.ID()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Account deleted")
			return nil
		},
	}
}

func (c *cli) createRoomCmd() *cobra.Command {
	var p usecase.CreateRoomParams
	cmd := &cobra.Command{
		Use:   "create-room",
		Short: "Create a password protected room",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			room, err := c.app.rooms.Create(cmd.Context(), p)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), "Created ")
			printRoom(cmd.OutOrStdout(), room)
			return nil
		},
	}
	cmd.Flags().StringVar(&p.Name, "name", "", "room name")
	cmd.Flags().StringVar(&p.Password, "password", "", "room password")
	return cmd
}

func (c *cli) enterRoomCmd() *cobra.Command {
	var p usecase.EnterRoomParams
	cmd := &cobra.Command{
		Use:   "enter-room",
		Short: "Join a room with its code and password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			room, err := c.app.rooms.Enter(cmd.Context(), p)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), "Entered ")
			printRoom(cmd.OutOrStdout(), room)
			return nil
		},
	}
	cmd.Flags().StringVar(&p.Code, "code", "", "join code")
	cmd.Flags().StringVar(&p.Password, "password", "", "room password")
	return cmd
}

func (c *cli) roomsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rooms",
		Short: "List the rooms of the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rooms, err := c.app.rooms.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, r := range rooms {
				printRoom(cmd.OutOrStdout(), r)
			}
			return nil
		},
	}
}

func (c *cli) sendCmd() *cobra.Command {
	var msgType, file string
	cmd := &cobra.Command{
		Use:   "send <room-id> [text...]",
		Short: "Send a text message, or an image or video with --file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			current, err := c.currentUser()
			if err != nil {
				return err
			}

			p := usecase.SendMessageParams{
				RoomID:   args[0],
				SenderID: current.ID(),
				Content:  strings.Join(args[1:], " "),
				Type:     msgType,
			}
			if file != "" {
				data, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", file, err)
				}
				p.MediaURI = file
				p.MediaData = data
			}

			m, err := c.app.messages.Send(cmd.Context(), p)
			if err != nil {
				return err
			}
			printMessage(cmd.OutOrStdout(), m)
			return nil
		},
	}
	cmd.Flags().StringVar(&msgType, "type", string(domain.MessageText), "text, image or video")
	cmd.Flags().StringVar(&file, "file", "", "media file of image and video messages")
	return cmd
}

func (c *cli) historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <room-id>",
		Short: "Print the messages of a room, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			messages, err := c.app.messages.History(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, m := range messages {
				printMessage(cmd.OutOrStdout(), m)
			}
			return nil
		},
	}
}

func (c *cli) watchCmd() *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "watch <room-id>",
		Short: "Print the history of a room, then new messages as they arrive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stream, err := c.app.messages.Watch(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer stream.Unsubscribe()

			for seen := 0; count <= 0 || seen < count; seen++ {
				select {
				case m, ok := <-stream.Messages():
					if !ok {
						return stream.Err()
					}
					printMessage(cmd.OutOrStdout(), m)
				case <-cmd.Context().Done():
					return nil
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&count, "count", 0, "stop after this many messages, 0 waits until interrupted")
	return cmd
}

func (c *cli) mediaURLCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "media-url <file-url>",
		Short: "Print a temporary download link for a message file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url, err := c.app.messages.MediaURL(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), url)
			return nil
		},
	}
}

func (c *cli) shellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Read commands from stdin, one per line, in a single session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			scanner := bufio.NewScanner(cmd.InOrStdin())

			for {
				fmt.Fprint(out, "> ")
				if !scanner.Scan() {
					fmt.Fprintln(out)
					return scanner.Err()
				}

				args := strings.Fields(scanner.Text())
				if len(args) == 0 {
					continue
				}
				if args[0] == "exit" || args[0] == "quit" {
					return nil
				}
				if args[0] == "shell" {
					fmt.Fprintln(out, "error: already in a shell")
					continue
				}

				line := c.root()
				line.SetArgs(args)
				line.SetIn(cmd.InOrStdin())
				line.SetOut(out)
				line.SetErr(cmd.ErrOrStderr())
				if err := line.ExecuteContext(cmd.Context()); err != nil {
					fmt.Fprintln(out, "error:", err)
				}
				if cmd.Context().Err() != nil {
					return nil
				}
			}
		},
	}
}
