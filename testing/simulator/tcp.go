package simulator

import (
	"io"
	"log"
	"net"
)

// StartTCPServer listens on addr and proxies every accepted connection
// to its own ELM327 emulator, the transport the adapter's "tcp" type
// dials in dev/test configs.
func StartTCPServer(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	defer listener.Close()

	log.Printf("Simulator listening on %s", addr)

	for {
		conn, err := listener.Accept()
		if err != nil {
			log.Printf("Error accepting connection: %v", err)
			continue
		}
		go handleConnection(conn)
	}
}

func handleConnection(conn net.Conn) {
	defer conn.Close()
	log.Printf("New connection from %s", conn.RemoteAddr())

	elm := NewELM327()
	buf := make([]byte, 256)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			if err != io.EOF {
				log.Printf("simulator read error: %v", err)
			}
			return
		}
		if _, err := elm.Write(buf[:n]); err != nil {
			return
		}
		reply := make([]byte, 512)
		rn, _ := elm.Read(reply)
		if rn > 0 {
			if _, err := conn.Write(reply[:rn]); err != nil {
				return
			}
		}
	}
}
