package rpc

import (
	"errors"
	"net"
	"net/rpc"

	"github.com/wfunc/tetris/logger"
	"github.com/wfunc/tetris/services"
)

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
	rpc      *rpc.Server
}

// NewServer creates a new RPC server exposing service as "GameService".
func NewServer(addr string, service *GameService) (*Server, error) {
	rpcServer := rpc.NewServer()
	if err := rpcServer.RegisterName("GameService", service); err != nil {
		return nil, err
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  listener.Addr().String(),
		rpc:      rpcServer,
	}, nil
}

// Addr is the address actually bound.
func (s *Server) Addr() string {
	return s.address
}

// Start begins listening for RPC requests. It blocks until Stop.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			// Check if the error is due to the listener being closed.
			if errors.Is(err, net.ErrClosed) {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go s.rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// GameService is the struct that exposes RPC methods.
type GameService struct {
	roomService *services.RoomService
}

// NewGameService creates a new GameService.
func NewGameService(rs *services.RoomService) *GameService {
	return &GameService{roomService: rs}
}

// Arguments and replies follow the net/rpc signature: exported method,
// exported arguments, second argument is a pointer, return type is error.
type ListRoomsArgs struct {
	// Limit caps the number of rooms returned; 0 means all.
	Limit int
}

type ListRoomsReply struct {
	Rooms []services.RoomSummary
}

type GetRoomArgs struct {
	RoomID string
}

type GetRoomReply struct {
	Room services.RoomSummary
}

func (gs *GameService) ListRooms(args *ListRoomsArgs, reply *ListRoomsReply) error {
	rooms, err := gs.roomService.ListRooms(args.Limit)
	if err != nil {
		return err
	}
	reply.Rooms = rooms
	return nil
}

func (gs *GameService) GetRoom(args *GetRoomArgs, reply *GetRoomReply) error {
	room, err := gs.roomService.GetRoom(args.RoomID)
	if err != nil {
		return err
	}
	reply.Room = room
	return nil
}
