package netctrl

import (
	"context"

	"github.com/basiliscos/syncspirit-go/internal/model/diff"
	"github.com/basiliscos/syncspirit-go/internal/protocol"
)

// OnLocalUpdate reacts to a diff.LocalUpdate applied to the cluster: if
// its folder is shared with this peer and the peer has completed the
// initial index exchange, the new file is pushed out as an
// IndexUpdate. Updates arriving while the peer is still in an earlier
// handshake state are dropped; this package never sends a full Index
// that would carry them later.
func (pc *PeerController) OnLocalUpdate(ctx context.Context, d *diff.LocalUpdate) error {
	if pc.State() < StateIndexExchanged {
		return nil
	}

	folder, ok := pc.cluster.Folder(d.FolderKey)
	if !ok {
		return nil
	}
	if _, shared := folder.SharedWith[pc.device]; !shared {
		return nil
	}

	return pc.conn.SendIndexUpdate(protocol.IndexUpdateMessage{
		Folder: folder.ID,
		Files:  []protocol.FileInfo{fromModelFile(d.File)},
	})
}
