package console

import "github.com/davidlandreman/corekernel/kernel/hal/multiboot"

var getFramebufferInfoFn = multiboot.GetFramebufferInfo
