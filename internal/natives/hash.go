package natives

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/blake2b"

	"rak/internal/fiber"
	"rak/internal/rakerr"
	"rak/internal/value"
)

// registerHash installs two hashing natives: blake2b over
// golang.org/x/crypto and sha256 over the standard library — the teacher's own dependency on this package backs an offensive
// cryptoanalysis module that has no home in this spec (see DESIGN.md);
// plain string hashing is the safe, natural use for an embeddable core.
func registerHash(vm *fiber.VM) {
	vm.RegisterNative("sha256", 1, nativeSHA256)
	vm.RegisterNative("blake2b", 1, nativeBlake2b)
}

func nativeSHA256(ctx value.NativeContext) (value.Value, *rakerr.Error) {
	s, err := argString(ctx, 0)
	if err != nil {
		return value.Value{}, err
	}
	sum := sha256.Sum256([]byte(s))
	return value.NewString(hex.EncodeToString(sum[:])), nil
}

func nativeBlake2b(ctx value.NativeContext) (value.Value, *rakerr.Error) {
	s, err := argString(ctx, 0)
	if err != nil {
		return value.Value{}, err
	}
	sum := blake2b.Sum256([]byte(s))
	return value.NewString(hex.EncodeToString(sum[:])), nil
}
