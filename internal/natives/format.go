package natives

import (
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	strftime "github.com/ncruces/go-strftime"

	"rak/internal/fiber"
	"rak/internal/rakerr"
	"rak/internal/value"
)

func secondsToTime(epoch float64) time.Time {
	return time.Unix(int64(epoch), 0).UTC()
}

// registerFormat installs small, self-contained formatting/identifier
// builtins drawn from go.mod entries the teacher never itself imports
// from code, rounding out the registry per SPEC_FULL.md §3.
func registerFormat(vm *fiber.VM) {
	vm.RegisterNative("bytes", 1, nativeBytes)
	vm.RegisterNative("strftime", 2, nativeStrftime)
	vm.RegisterNative("uuid", 0, nativeUUID)
}

func nativeBytes(ctx value.NativeContext) (value.Value, *rakerr.Error) {
	n, err := argNumber(ctx, 0)
	if err != nil {
		return value.Value{}, err
	}
	return value.NewString(humanize.Bytes(uint64(n))), nil
}

func nativeStrftime(ctx value.NativeContext) (value.Value, *rakerr.Error) {
	layout, err := argString(ctx, 0)
	if err != nil {
		return value.Value{}, err
	}
	epoch, err := argNumber(ctx, 1)
	if err != nil {
		return value.Value{}, err
	}
	return value.NewString(strftime.Format(layout, secondsToTime(epoch))), nil
}

func nativeUUID(ctx value.NativeContext) (value.Value, *rakerr.Error) {
	return value.NewString(uuid.NewString()), nil
}
