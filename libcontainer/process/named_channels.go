package process

import "fmt"

// The three named channels of one birth protocol run (4.A): main
// (intermediate/init -> main), intermediate (main -> intermediate),
// and init (main -> init). Each is modeled as a typed sender/receiver
// pair so a protocol step can only send/expect the messages valid at
// that step — mirrors youki's channel.rs wrapper types one-for-one.

// MainSender is held by the intermediate and init processes to talk to
// main.
type MainSender struct{ ch *Channel }

func NewMainSender(ch *Channel) MainSender { return MainSender{ch} }

func (s MainSender) IdentifierMappingRequest() error { return s.ch.Send(WriteMapping()) }
func (s MainSender) SeccompNotifyRequest(fd int) error {
	return s.ch.SendFD(SeccompNotify(), fd)
}
func (s MainSender) IntermediateReady(pid int32) error { return s.ch.Send(IntermediateReady(pid)) }
func (s MainSender) InitReady(pid int32) error         { return s.ch.Send(InitReady(pid)) }
func (s MainSender) NamespacesReady() error            { return s.ch.Send(NamespacesReady()) }
func (s MainSender) ExecFailed(err string) error       { return s.ch.Send(ExecFailed(err)) }
func (s MainSender) SendError(err string) error        { return s.ch.Send(OtherError(err)) }
func (s MainSender) Close() error                      { return s.ch.Close() }

// MainReceiver is held by main.
type MainReceiver struct{ ch *Channel }

func NewMainReceiver(ch *Channel) MainReceiver { return MainReceiver{ch} }

func (r MainReceiver) WaitForIntermediateReady() (int32, error) {
	m, err := r.ch.Recv()
	if err != nil {
		return 0, fmt.Errorf("waiting for intermediate process: %w", err)
	}
	switch m.Kind {
	case KindIntermediateReady:
		return m.Pid, nil
	case KindExecFailed:
		return 0, fmt.Errorf("exec process failed with error %s", m.Text)
	case KindOtherError:
		return 0, fmt.Errorf("intermediate process error %s", m.Text)
	default:
		return 0, &UnexpectedMessageError{Expected: KindIntermediateReady, Received: m}
	}
}

func (r MainReceiver) WaitForMappingRequest() error {
	m, err := r.ch.Recv()
	if err != nil {
		return fmt.Errorf("waiting for mapping request: %w", err)
	}
	if m.Kind != KindWriteMapping {
		return &UnexpectedMessageError{Expected: KindWriteMapping, Received: m}
	}
	return nil
}

func (r MainReceiver) WaitForNamespacesReady() error {
	m, err := r.ch.Recv()
	if err != nil {
		return fmt.Errorf("waiting for namespaces ready: %w", err)
	}
	if m.Kind != KindNamespacesReady {
		return &UnexpectedMessageError{Expected: KindNamespacesReady, Received: m}
	}
	return nil
}

func (r MainReceiver) WaitForSeccompRequest() (int, error) {
	m, fd, err := r.ch.RecvWithFD()
	if err != nil {
		return -1, fmt.Errorf("waiting for seccomp request: %w", err)
	}
	if m.Kind != KindSeccompNotify {
		return -1, &UnexpectedMessageError{Expected: KindSeccompNotify, Received: m}
	}
	return fd, nil
}

func (r MainReceiver) WaitForInitReady() (int32, error) {
	m, err := r.ch.Recv()
	if err != nil {
		return 0, fmt.Errorf("waiting for init ready: %w", err)
	}
	switch m.Kind {
	case KindInitReady:
		return m.Pid, nil
	case KindExecFailed:
		return 0, fmt.Errorf("error in executing process: %s", m.Text)
	default:
		return 0, &UnexpectedMessageError{Expected: KindInitReady, Received: m}
	}
}

func (r MainReceiver) Close() error { return r.ch.Close() }

// IntermediateSender is held by main to acknowledge a mapping write.
type IntermediateSender struct{ ch *Channel }

func NewIntermediateSender(ch *Channel) IntermediateSender { return IntermediateSender{ch} }

func (s IntermediateSender) Bootstrap(payload string) error { return s.ch.Send(Bootstrap(payload)) }
func (s IntermediateSender) MappingWritten() error          { return s.ch.Send(MappingWritten()) }
func (s IntermediateSender) NamespacesReadyAck() error       { return s.ch.Send(NamespacesReadyAck()) }
func (s IntermediateSender) Close() error                    { return s.ch.Close() }

// IntermediateReceiver is held by the intermediate process.
type IntermediateReceiver struct{ ch *Channel }

func NewIntermediateReceiver(ch *Channel) IntermediateReceiver { return IntermediateReceiver{ch} }

func (r IntermediateReceiver) WaitForBootstrap() (string, error) {
	m, err := r.ch.Recv()
	if err != nil {
		return "", fmt.Errorf("waiting for bootstrap: %w", err)
	}
	if m.Kind != KindBootstrap {
		return "", &UnexpectedMessageError{Expected: KindBootstrap, Received: m}
	}
	return m.Text, nil
}

func (r IntermediateReceiver) WaitForMappingAck() error {
	m, err := r.ch.Recv()
	if err != nil {
		return fmt.Errorf("waiting for mapping ack: %w", err)
	}
	if m.Kind != KindMappingWritten {
		return &UnexpectedMessageError{Expected: KindMappingWritten, Received: m}
	}
	return nil
}

func (r IntermediateReceiver) WaitForNamespacesReadyAck() error {
	m, err := r.ch.Recv()
	if err != nil {
		return fmt.Errorf("waiting for namespaces ready ack: %w", err)
	}
	if m.Kind != KindNamespacesReadyAck {
		return &UnexpectedMessageError{Expected: KindNamespacesReadyAck, Received: m}
	}
	return nil
}

func (r IntermediateReceiver) Close() error { return r.ch.Close() }

// InitSender is held by main to acknowledge a seccomp fd hand-off.
type InitSender struct{ ch *Channel }

func NewInitSender(ch *Channel) InitSender { return InitSender{ch} }

func (s InitSender) Bootstrap(payload string) error { return s.ch.Send(Bootstrap(payload)) }
func (s InitSender) SeccompNotifyDone() error       { return s.ch.Send(SeccompNotifyDone()) }
func (s InitSender) Close() error                   { return s.ch.Close() }

// InitReceiver is held by the init process.
type InitReceiver struct{ ch *Channel }

func NewInitReceiver(ch *Channel) InitReceiver { return InitReceiver{ch} }

func (r InitReceiver) WaitForBootstrap() (string, error) {
	m, err := r.ch.Recv()
	if err != nil {
		return "", fmt.Errorf("waiting for bootstrap: %w", err)
	}
	if m.Kind != KindBootstrap {
		return "", &UnexpectedMessageError{Expected: KindBootstrap, Received: m}
	}
	return m.Text, nil
}

func (r InitReceiver) WaitForSeccompRequestDone() error {
	m, err := r.ch.Recv()
	if err != nil {
		return fmt.Errorf("waiting for seccomp request done: %w", err)
	}
	if m.Kind != KindSeccompNotifyDone {
		return &UnexpectedMessageError{Expected: KindSeccompNotifyDone, Received: m}
	}
	return nil
}

func (r InitReceiver) Close() error { return r.ch.Close() }
