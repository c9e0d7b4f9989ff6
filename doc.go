// Package pandecrypt recovers the plaintext of files that a cloud-storage
// sync client stored in its password-protected container format.
//
// # Overview
//
// The engine reads files through the absfs.FileSystem abstraction, so it runs
// unchanged over the real operating system filesystem (NewOSFS) or over an
// in-memory filesystem in tests.
//
//	dec, err := pandecrypt.New(pandecrypt.NewOSFS(), &pandecrypt.Config{})
//	if err != nil {
//	    panic(err)
//	}
//
//	out := dec.DecryptFile(ctx, pandecrypt.FileRequest{
//	    Input:    "/sync/report.pdf.enc",
//	    Password: "123456",
//	    KeepOriginal: true,
//	})
//	if !out.OK() {
//	    fmt.Println(out.Message())
//	}
//
// # Container Format
//
// Containers carry no magic bytes and no version field:
//   - Salt (16 bytes): per-file PBKDF2 salt
//   - IV (16 bytes): CBC initialisation vector
//   - Ciphertext (remaining bytes): AES-256-CBC, PKCS#7 padded,
//     a nonzero multiple of 16 bytes
//
// The key is PBKDF2-HMAC-SHA256(password, salt, 100000 iterations, 32 bytes).
//
// # Security Considerations
//
// The format has no authentication tag. A wrong password and a corrupted
// file are indistinguishable: both usually surface as a padding failure, and
// roughly one wrong password in 256 still produces valid-looking padding.
// This weakness is inherited from the files being read and is kept so the
// engine stays byte-compatible with them.
//
// Classification is a length heuristic (at least 48 bytes), not a proof.
// Plain files of 48 bytes or more are routed to decryption and fail there.
//
// # Output Safety
//
// Without Config.AtomicWrite, a write that fails midway can leave a
// truncated output file behind. Sources are only removed after the output
// (or pass-through copy) has been written successfully.
package pandecrypt
