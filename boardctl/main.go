package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/docopt/docopt-go"
	"github.com/joho/godotenv"
	"golang.org/x/term"

	"github.com/qadash/qadash/board"
)

const BoardCtlVersion = "0.0.1"

var Out *log.Logger
var Err *log.Logger

func init() {
	Out = log.New(os.Stdout, "", 0)
	Err = log.New(os.Stderr, "", log.Ldate|log.Ltime|log.Lshortfile)
}

func main() {
	usage := `Board control.

The api url defaults to BOARD_API_URL, else http://localhost:8000.
Credentials default to BOARD_JWT. Both can be set in a .env file.

Usage:
    boardctl questions [--api_url=<api_url>] [--jwt=<jwt>]
    boardctl responses [--api_url=<api_url>] [--jwt=<jwt>] <question_id>
    boardctl ask [--api_url=<api_url>] [--jwt=<jwt>]
        [--guest_name=<name>]
        <message>
    boardctl respond [--api_url=<api_url>] [--jwt=<jwt>]
        [--guest_name=<name>]
        <question_id> <message>
    boardctl status [--api_url=<api_url>] --jwt=<jwt>
        <question_id> <status>
    boardctl register [--api_url=<api_url>]
        --username=<username>
        --email=<email>
    boardctl login [--api_url=<api_url>] --username=<username>
    boardctl me [--api_url=<api_url>] --jwt=<jwt>
    boardctl watch [--api_url=<api_url>] [--jwt=<jwt>]
        [--page_origin=<origin>]

Options:
    -h --help               Show this screen.
    --version               Show version.
    --api_url=<api_url>     Board api url.
    --jwt=<jwt>             Your access token.
    --guest_name=<name>     Display name when not logged in.
    --username=<username>
    --email=<email>
    --page_origin=<origin>  Origin of the hosting surface, for the
                            mixed-content gate on the push channel.`

	godotenv.Load()

	opts, err := docopt.ParseArgs(usage, os.Args[1:], BoardCtlVersion)
	if err != nil {
		panic(err)
	}

	if questions_, _ := opts.Bool("questions"); questions_ {
		questions(opts)
	} else if responses_, _ := opts.Bool("responses"); responses_ {
		responses(opts)
	} else if ask_, _ := opts.Bool("ask"); ask_ {
		ask(opts)
	} else if respond_, _ := opts.Bool("respond"); respond_ {
		respond(opts)
	} else if status_, _ := opts.Bool("status"); status_ {
		status(opts)
	} else if register_, _ := opts.Bool("register"); register_ {
		register(opts)
	} else if login_, _ := opts.Bool("login"); login_ {
		login(opts)
	} else if me_, _ := opts.Bool("me"); me_ {
		me(opts)
	} else if watch_, _ := opts.Bool("watch"); watch_ {
		watch(opts)
	}
}

func newApi(opts docopt.Opts) *board.Api {
	apiUrl, _ := opts.String("--api_url")
	if apiUrl == "" {
		apiUrl = os.Getenv("BOARD_API_URL")
	}
	if apiUrl == "" {
		apiUrl = "http://localhost:8000"
	}

	api := board.NewApi(apiUrl)

	jwt, _ := opts.String("--jwt")
	if jwt == "" {
		jwt = os.Getenv("BOARD_JWT")
	}
	if jwt != "" {
		api.SetAuthJwt(jwt)
	}

	return api
}

func questionIdArg(opts docopt.Opts) (int, error) {
	questionIdStr, _ := opts.String("<question_id>")
	return strconv.Atoi(questionIdStr)
}

func printQuestion(question *board.Question) {
	Out.Printf(
		"#%-4d [%-9s] %-16s (%d responses) %s",
		question.QuestionId,
		question.Status,
		question.AuthorName(),
		question.ResponseCount,
		question.Message,
	)
}

func questions(opts docopt.Opts) {
	api := newApi(opts)
	defer api.Close()

	results, err := api.GetQuestionsSync()
	if err != nil {
		Err.Fatalf("Could not list questions (%s).", err)
	}
	for _, question := range results {
		printQuestion(question)
	}
}

func responses(opts docopt.Opts) {
	api := newApi(opts)
	defer api.Close()

	questionId, err := questionIdArg(opts)
	if err != nil {
		Err.Fatalf("Invalid question_id (%s).", err)
	}

	results, err := api.GetResponsesSync(questionId)
	if err != nil {
		Err.Fatalf("Could not list responses (%s).", err)
	}
	for _, response := range results {
		Out.Printf("#%-4d %-16s %s", response.ResponseId, response.AuthorName(), response.Message)
	}
}

func ask(opts docopt.Opts) {
	api := newApi(opts)
	defer api.Close()

	message, _ := opts.String("<message>")
	guestName, _ := opts.String("--guest_name")
	if api.AuthJwt() != "" {
		guestName = ""
	}

	question, err := api.CreateQuestionSync(&board.CreateQuestionArgs{
		Message:   message,
		GuestName: guestName,
	})
	if err != nil {
		Err.Fatalf("Could not post question (%s).", err)
	}
	printQuestion(question)
}

func respond(opts docopt.Opts) {
	api := newApi(opts)
	defer api.Close()

	questionId, err := questionIdArg(opts)
	if err != nil {
		Err.Fatalf("Invalid question_id (%s).", err)
	}
	message, _ := opts.String("<message>")
	guestName, _ := opts.String("--guest_name")
	if api.AuthJwt() != "" {
		guestName = ""
	}

	response, err := api.CreateResponseSync(questionId, &board.CreateResponseArgs{
		Message:   message,
		GuestName: guestName,
	})
	if err != nil {
		Err.Fatalf("Could not post response (%s).", err)
	}
	Out.Printf("#%-4d %-16s %s", response.ResponseId, response.AuthorName(), response.Message)
}

func status(opts docopt.Opts) {
	api := newApi(opts)
	defer api.Close()

	questionId, err := questionIdArg(opts)
	if err != nil {
		Err.Fatalf("Invalid question_id (%s).", err)
	}
	statusStr, _ := opts.String("<status>")
	questionStatus := board.QuestionStatus(statusStr)
	if !questionStatus.Valid() {
		Err.Fatalf("Invalid status (%s). One of: %s, %s, %s.",
			statusStr, board.StatusPending, board.StatusEscalated, board.StatusAnswered)
	}

	question, err := api.UpdateQuestionStatusSync(questionId, &board.UpdateQuestionStatusArgs{
		Status: questionStatus,
	})
	if err != nil {
		Err.Fatalf("Could not update status (%s).", err)
	}
	printQuestion(question)
}

func readPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Password: ")
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(password), nil
}

func register(opts docopt.Opts) {
	api := newApi(opts)
	defer api.Close()

	username, _ := opts.String("--username")
	email, _ := opts.String("--email")
	password, err := readPassword()
	if err != nil {
		Err.Fatalf("Could not read password (%s).", err)
	}

	result, err := api.AuthRegisterSync(&board.AuthRegisterArgs{
		Username: username,
		Email:    email,
		Password: password,
	})
	if err != nil {
		Err.Fatalf("Could not register (%s).", err)
	}
	Out.Printf("%s", result.AccessToken)
}

func login(opts docopt.Opts) {
	api := newApi(opts)
	defer api.Close()

	username, _ := opts.String("--username")
	password, err := readPassword()
	if err != nil {
		Err.Fatalf("Could not read password (%s).", err)
	}

	result, err := api.AuthLoginSync(&board.AuthLoginArgs{
		Username: username,
		Password: password,
	})
	if err != nil {
		Err.Fatalf("Could not log in (%s).", err)
	}
	Out.Printf("%s", result.AccessToken)
}

func me(opts docopt.Opts) {
	api := newApi(opts)
	defer api.Close()

	result, err := api.GetMeSync()
	if err != nil {
		Err.Fatalf("Could not load profile (%s).", err)
	}
	Out.Printf("%s <%s>", result.Username, result.Email)
}

// watch renders the synchronized board to stdout as pushes arrive
func watch(opts docopt.Opts) {
	apiUrl, _ := opts.String("--api_url")
	if apiUrl == "" {
		apiUrl = os.Getenv("BOARD_API_URL")
	}
	if apiUrl == "" {
		apiUrl = "http://localhost:8000"
	}
	pageOrigin, _ := opts.String("--page_origin")

	cancelCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	settings := board.DefaultClientSettings()
	settings.PageOrigin = pageOrigin
	client, err := board.NewClient(cancelCtx, apiUrl, settings)
	if err != nil {
		Err.Fatalf("Could not create client (%s).", err)
	}
	defer client.Close()

	jwt, _ := opts.String("--jwt")
	if jwt == "" {
		jwt = os.Getenv("BOARD_JWT")
	}
	if jwt != "" {
		client.Api().SetAuthJwt(jwt)
	}

	removeConnectivity := client.Channel().AddConnectivityCallback(func(connected bool) {
		if connected {
			Out.Printf("-- live --")
		} else {
			Out.Printf("-- reconnecting --")
		}
	})
	defer removeConnectivity()

	removeSnapshot := client.Store().AddSnapshotCallback(func(snapshot *board.Snapshot) {
		if snapshot.Err != nil {
			Out.Printf("!! %s", snapshot.Err)
			return
		}
		for _, question := range snapshot.Questions {
			printQuestion(question)
		}
		Out.Printf("--")
	})
	defer removeSnapshot()

	if err := client.Actions().FetchQuestions(); err != nil {
		Err.Fatalf("Could not load questions (%s).", err)
	}
	client.Start()

	// signal.Notify requires the channel to be buffered
	ctrlc := make(chan os.Signal, 1)
	signal.Notify(ctrlc, os.Interrupt, syscall.SIGTERM)
	<-ctrlc
}
