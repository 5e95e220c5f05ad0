package obfs

// originProtocol and originObfs are the no-op plugins selected by the
// empty/"origin" name: the stream-ciphered bytes pass through
// unchanged, matching the original implementation's "origin" plugin.

type originProtocol struct{}

func (o *originProtocol) SetServerInfo(*ServerInfo)                     {}
func (o *originProtocol) ClientPreEncrypt(data []byte) ([]byte, error)  { return data, nil }
func (o *originProtocol) ClientPostDecrypt(data []byte) ([]byte, error) { return data, nil }
func (o *originProtocol) GetOverhead() int                              { return 0 }

type originObfs struct{}

func (o *originObfs) SetServerInfo(*ServerInfo)                {}
func (o *originObfs) ClientEncode(data []byte) ([]byte, error) { return data, nil }
func (o *originObfs) ClientDecode(data []byte) ([]byte, bool, error) {
	return data, false, nil
}
func (o *originObfs) GetOverhead() int { return 0 }
