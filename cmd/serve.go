package cmd

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // autoregisters driver

	"github.com/fibril-audio/fibril/constants"
	"github.com/fibril-audio/fibril/engine"
	"github.com/fibril-audio/fibril/logging"
	"github.com/fibril-audio/fibril/midiout"
	"github.com/fibril-audio/fibril/osc"
	"github.com/fibril-audio/fibril/pool"
	"github.com/fibril-audio/fibril/rank"
)

var (
	serveListenPort int
	serveSendPort   int
	serveSendHost   string
	serveHTTPAddr   string
	serveMidi       bool
	serveMidiPort   int
	serveVerbose    bool
	serveSeed       uint64
)

func init() {
	serveCmd.Flags().IntVar(&serveListenPort, "listen-port", constants.GetListenPort(), "UDP port for inbound control messages")
	serveCmd.Flags().IntVar(&serveSendPort, "send-port", constants.GetSendPort(), "UDP port for outbound voice messages")
	serveCmd.Flags().StringVar(&serveSendHost, "send-host", constants.GetSendHost(), "host for outbound voice messages")
	serveCmd.Flags().StringVar(&serveHTTPAddr, "http-addr", constants.DefaultHTTPAddr, "address of the read-only state endpoint")
	serveCmd.Flags().BoolVar(&serveMidi, "midi", false, "mirror voice changes to a local MIDI out port")
	serveCmd.Flags().IntVar(&serveMidiPort, "midi-port", 0, "MIDI out port index")
	serveCmd.Flags().BoolVar(&serveVerbose, "verbose", false, "debug logging")
	serveCmd.Flags().Uint64Var(&serveSeed, "seed", 0, "rng seed, 0 seeds from the clock")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Runs the allocation engine",
	Long:  `Listens for OSC control updates, runs allocation cycles and publishes voice changes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

func serve() error {
	log := logging.NewDefaultLogger()
	if serveVerbose {
		log.SetLevel(logging.DebugLevel)
	}

	registry := rank.NewRegistry()
	voicePool := pool.New()
	eng := engine.New(registry, voicePool, log, seedOrClock(serveSeed))
	runner := engine.NewRunner(eng, registry, voicePool, constants.InputWindow, log)

	runner.AddPublisher(osc.NewSender(serveSendHost, serveSendPort, log))

	if serveMidi {
		mirror, err := midiout.New(serveMidiPort, log)
		if err != nil {
			return err
		}
		defer mirror.Silence()
		runner.AddPublisher(mirror)
	}

	go serveHTTP(runner, log)

	server := osc.NewServer(serveListenPort, runner, log)
	return server.ListenAndServe()
}

// serveHTTP exposes the read-only snapshot to display collaborators.
func serveHTTP(runner *engine.Runner, log logging.Logger) {
	router := mux.NewRouter().StrictSlash(true)
	router.HandleFunc("/state", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, runner.Snapshot())
	}).Methods("GET")
	router.HandleFunc("/ranks", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, runner.Snapshot().Ranks)
	}).Methods("GET")
	router.HandleFunc("/voices", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, runner.Snapshot().Voices)
	}).Methods("GET")

	handler := cors.Default().Handler(router)
	log.Info("state endpoint started", logging.Fields{"addr": serveHTTPAddr})
	if err := http.ListenAndServe(serveHTTPAddr, handler); err != nil {
		log.Error(err, "state endpoint failed")
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
