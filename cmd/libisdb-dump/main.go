// Command libisdb-dump reads a transport stream and prints a summary of
// the services, elementary streams, and EPG events it found.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/tonalfitness/libisdb"
	"github.com/tonalfitness/libisdb/filter"
)

func main() {
	var (
		fileName string
		showEPG  bool
		service  uint
	)
	flag.StringVar(&fileName, "f", "", "ts file to read")
	flag.BoolVar(&showEPG, "epg", false, "print EPG events alongside services")
	flag.UintVar(&service, "select", 0, "restrict output to this service_id (0 = all)")
	flag.Parse()

	f := os.Stdin
	if fileName != "" {
		var err error
		f, err = os.Open(fileName)
		if err != nil {
			log.Fatalf("failed open: %v", err)
		}
		defer f.Close()
	}

	eng := libisdb.NewEngine(libisdb.DefaultConfig())
	if service != 0 {
		eng.SelectService(uint16(service), filter.StreamAll, true)
	}
	eng.Start()

	rdr := bufio.NewReader(f)
	if err := eng.Feed(rdr); err != nil {
		log.Printf("feed error: %v", err)
	}
	eng.Stop()

	printServices(eng)
	if showEPG {
		printEPG(eng)
	}
}

func printServices(eng *libisdb.Engine) {
	a := eng.Analyzer()
	net := a.Network()
	fmt.Printf("network: id=%#04x name=%q\n", net.NetworkID, net.NetworkName)

	for _, svc := range a.ServiceList() {
		fmt.Printf("service %d: %q (provider %q) pmt_pid=%#04x pcr_pid=%#04x\n",
			svc.ServiceID, svc.ServiceName, svc.ProviderName, svc.PMTPID, svc.PCRPID)
		for _, es := range svc.VideoES {
			fmt.Printf("  video   pid=%#04x type=%#02x\n", es.PID, es.StreamType)
		}
		for _, es := range svc.AudioES {
			fmt.Printf("  audio   pid=%#04x type=%#02x\n", es.PID, es.StreamType)
		}
		for _, es := range svc.CaptionES {
			fmt.Printf("  caption pid=%#04x type=%#02x\n", es.PID, es.StreamType)
		}
	}
}

func printEPG(eng *libisdb.Engine) {
	db := eng.EPG()
	for _, svc := range db.ServiceList() {
		events := db.EventListSortedByTime(svc)
		fmt.Printf("epg service %d/%d/%d: %d events\n",
			svc.NetworkID, svc.TransportStreamID, svc.ServiceID, len(events))
		for _, ev := range events {
			fmt.Printf("  %s +%s [%d] %s\n",
				ev.StartTime.Format(time.RFC3339), ev.Duration, ev.EventID, ev.EventName)
		}
	}
}
