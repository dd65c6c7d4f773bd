package natives

import (
	"time"

	"github.com/gorilla/websocket"

	"rak/internal/fiber"
	"rak/internal/rakerr"
	"rak/internal/value"
)

var wsHandles = newHandleTable[*websocket.Conn]()

// registerNet installs the websocket natives, grounded on the teacher's
// internal/network connection-registry pattern (a map from an opaque
// handle to a live *websocket.Conn), adapted so the handle crosses the
// native boundary as a Rak Number instead of a Go string key.
func registerNet(vm *fiber.VM) {
	vm.RegisterNative("ws_connect", 1, nativeWSConnect)
	vm.RegisterNative("ws_send", 2, nativeWSSend)
	vm.RegisterNative("ws_recv", 1, nativeWSRecv)
	vm.RegisterNative("ws_close", 1, nativeWSClose)
}

func nativeWSConnect(ctx value.NativeContext) (value.Value, *rakerr.Error) {
	url, err := argString(ctx, 0)
	if err != nil {
		return value.Value{}, err
	}
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, dialErr := dialer.Dial(url, nil)
	if dialErr != nil {
		return value.Value{}, rakerr.New(rakerr.NameError, "ws_connect: %v", dialErr)
	}
	h := wsHandles.put(conn)
	return value.Number(float64(h)), nil
}

func nativeWSSend(ctx value.NativeContext) (value.Value, *rakerr.Error) {
	handle, err := argNumber(ctx, 0)
	if err != nil {
		return value.Value{}, err
	}
	msg, err := argString(ctx, 1)
	if err != nil {
		return value.Value{}, err
	}
	conn, ok := wsHandles.get(int(handle))
	if !ok {
		return value.Value{}, rakerr.New(rakerr.NameError, "ws_send: no open connection %v", handle)
	}
	if wsErr := conn.WriteMessage(websocket.TextMessage, []byte(msg)); wsErr != nil {
		return value.Value{}, rakerr.New(rakerr.NameError, "ws_send: %v", wsErr)
	}
	return value.Nil(), nil
}

func nativeWSRecv(ctx value.NativeContext) (value.Value, *rakerr.Error) {
	handle, err := argNumber(ctx, 0)
	if err != nil {
		return value.Value{}, err
	}
	conn, ok := wsHandles.get(int(handle))
	if !ok {
		return value.Value{}, rakerr.New(rakerr.NameError, "ws_recv: no open connection %v", handle)
	}
	_, msg, wsErr := conn.ReadMessage()
	if wsErr != nil {
		return value.Value{}, rakerr.New(rakerr.NameError, "ws_recv: %v", wsErr)
	}
	return value.NewString(string(msg)), nil
}

func nativeWSClose(ctx value.NativeContext) (value.Value, *rakerr.Error) {
	handle, err := argNumber(ctx, 0)
	if err != nil {
		return value.Value{}, err
	}
	conn, ok := wsHandles.get(int(handle))
	if !ok {
		return value.Nil(), nil
	}
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()
	wsHandles.remove(int(handle))
	return value.Nil(), nil
}
