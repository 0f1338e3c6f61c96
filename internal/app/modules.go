package app

import (
	"github.com/vk/fitgrid/internal/registry"
	"github.com/vk/fitgrid/modules/identity"
	"github.com/vk/fitgrid/modules/meanlabel"
	"github.com/vk/fitgrid/modules/minmax"
	"github.com/vk/fitgrid/modules/passthrough"
	"github.com/vk/fitgrid/modules/selectkeys"
)

// coreModules is the definitive list of transformer modules compiled into the
// fitgrid binary.
var coreModules = []registry.Module{
	&identity.Module{},
	&meanlabel.Module{},
	&minmax.Module{},
	&passthrough.Module{},
	&selectkeys.Module{},
}
