package hardware

import (
	"strconv"

	"github.com/pkg/errors"
	"gobot.io/x/gobot/v2/drivers/gpio"
	"gobot.io/x/gobot/v2/platforms/raspi"
)

// bcmToHeader maps BCM GPIO numbers to the physical header pins gobot uses.
var bcmToHeader = map[int]string{
	2: "3", 3: "5", 4: "7", 17: "11", 27: "13", 22: "15", 10: "19", 9: "21",
	11: "23", 5: "29", 6: "31", 13: "33", 19: "35", 26: "37", 14: "8", 15: "10",
	18: "12", 23: "16", 24: "18", 25: "22", 8: "24", 7: "26", 12: "32", 16: "36",
	20: "38", 21: "40",
}

// HeaderPin returns the header pin for a BCM GPIO number.
func HeaderPin(bcm int) (string, error) {
	p, ok := bcmToHeader[bcm]
	if !ok {
		return "", errors.Errorf("BCM pin %s is not a usable GPIO", strconv.Itoa(bcm))
	}
	return p, nil
}

type board struct {
	adaptor *raspi.Adaptor
}

func openBoard() (*board, error) {
	a := raspi.NewAdaptor()
	if err := a.Connect(); err != nil {
		return nil, errors.Wrap(err, "opening raspberry pi gpio")
	}
	return &board{adaptor: a}, nil
}

func (b *board) relay(bcm int) (Actuator, error) {
	pin, err := HeaderPin(bcm)
	if err != nil {
		return nil, err
	}
	r := gpio.NewRelayDriver(b.adaptor, pin)
	if err := r.Start(); err != nil {
		return nil, errors.Wrapf(err, "starting relay on pin %s", pin)
	}
	// relays start low (off)
	if err := r.Off(); err != nil {
		return nil, errors.Wrapf(err, "resetting relay on pin %s", pin)
	}
	return r, nil
}

func (b *board) close() error {
	return b.adaptor.Finalize()
}
